package main

import (
	"context"
	"fmt"
	"time"

	echoapi "github.com/thesisman/backend/apps/api/echo"
	"github.com/thesisman/backend/core/user"
)

// token prints a signed API token for the user with the given ID.
func (cli *commandLine) token(id string, ttl time.Duration) error {
	usr, err := cli.users.GetUser(context.Background(), user.GetFilter{ID: id})
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf.SecretKey, echoapi.NewClaims(cli.conf, usr, ttl))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
