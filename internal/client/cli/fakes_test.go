package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/wayne/internal/client/client"
	"github.com/dmitrijs2005/wayne/internal/client/config"
)

type fakeAPI struct {
	access, refresh string

	gotEmail, gotPassword string
	gotRemember           bool
	gotOld, gotNew        string
	gotEnvelope           *client.Envelope

	session  *client.Session
	envelope *client.Envelope
	bucket   *client.Bucket
	creds    *client.BucketCredentials
	err      error

	logouts int
}

var _ apiClient = (*fakeAPI)(nil)

func (f *fakeAPI) LoggedIn() bool                   { return f.access != "" || f.refresh != "" }
func (f *fakeAPI) SetTokens(access, refresh string) { f.access, f.refresh = access, refresh }
func (f *fakeAPI) Health(context.Context) error     { return f.err }
func (f *fakeAPI) Refresh(context.Context) error    { return f.err }
func (f *fakeAPI) CreateBucket(context.Context) (*client.Bucket, error) {
	return f.bucket, f.err
}
func (f *fakeAPI) GetBucket(context.Context) (*client.BucketCredentials, error) {
	return f.creds, f.err
}

func (f *fakeAPI) authenticate(email, password string, remember bool) (*client.Session, error) {
	f.gotEmail, f.gotPassword, f.gotRemember = email, password, remember
	if f.err != nil {
		return nil, f.err
	}
	f.SetTokens(f.session.AccessToken, f.session.RefreshToken)
	return f.session, nil
}

func (f *fakeAPI) Register(_ context.Context, email, password string, remember bool) (*client.Session, error) {
	return f.authenticate(email, password, remember)
}

func (f *fakeAPI) Login(_ context.Context, email, password string, remember bool) (*client.Session, error) {
	return f.authenticate(email, password, remember)
}

func (f *fakeAPI) Logout(context.Context) error {
	f.logouts++
	f.SetTokens("", "")
	return f.err
}

func (f *fakeAPI) ChangePassword(_ context.Context, oldPassword, newPassword string) error {
	f.gotOld, f.gotNew = oldPassword, newPassword
	return f.err
}

func (f *fakeAPI) RotateMasterSecret(_ context.Context, envelope client.Envelope) error {
	f.gotEnvelope = &envelope
	return f.err
}

func (f *fakeAPI) PutEnvelope(_ context.Context, envelope client.Envelope) (string, error) {
	f.gotEnvelope = &envelope
	if f.err != nil {
		return "", f.err
	}
	return "env-1", nil
}

func (f *fakeAPI) GetEnvelope(context.Context) (*client.Envelope, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.envelope, "env-1", nil
}

// stubPasswords makes getPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })

	i := 0
	getPassword = func(string, io.Writer) ([]byte, error) {
		if i >= len(answers) {
			t.Fatalf("unexpected password prompt #%d", i+1)
		}
		i++
		return []byte(answers[i-1]), nil
	}
}

func newTestApp(api *fakeAPI, input string) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{ServerURL: "http://wayne.test", RequestTimeout: time.Second}
	return newApp(cfg, api, strings.NewReader(input), out), out
}
