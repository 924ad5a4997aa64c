package cli

import (
	"context"
	"fmt"
)

// Bucket handles "bucket create" and "bucket show".
func (a *App) Bucket(ctx context.Context, args []string) error {
	switch {
	case len(args) == 1 && args[0] == "create":
		return a.createBucket(ctx)
	case len(args) == 0 || (len(args) == 1 && args[0] == "show"):
		return a.showBucket(ctx)
	}
	return errUsage
}

func (a *App) createBucket(ctx context.Context) error {
	b, err := a.api.CreateBucket(ctx)
	if err != nil {
		return err
	}
	a.println(b.Message)
	fmt.Fprintf(a.out, "Bucket:   %s\nEndpoint: %s\n", b.BucketName, b.Endpoint)
	return nil
}

func (a *App) showBucket(ctx context.Context) error {
	c, err := a.api.GetBucket(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Bucket:            %s\nEndpoint:          %s\nAccess key ID:     %s\nSecret access key: %s\n",
		c.BucketName, c.Endpoint, c.AccessKeyID, c.SecretAccessKey)
	return nil
}
