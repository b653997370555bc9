// Command authctl runs administrative tasks against the auth database.
//
//	authctl purge
//	authctl status -user <id> -action activate|deactivate|suspend
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/AhmadIb227/syria-gpt/config"
	"github.com/AhmadIb227/syria-gpt/internal/bootstrap"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := cfg.NewLogger()
	logger.SetOutput(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		logger.WithError(err).Fatal("bootstrap")
	}
	defer components.Close()

	switch os.Args[1] {
	case "purge":
		err = runPurge(ctx, components.Service)
	case "status":
		err = runStatus(ctx, components.Service, os.Args[2:])
	default:
		usage()
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		logger.WithError(err).Error(os.Args[1])
		components.Close()
		os.Exit(1)
	}
}

func runPurge(ctx context.Context, svc *service.AuthService) error {
	report, err := svc.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("verification_tokens=%d sessions=%d two_factor_challenges=%d\n",
		report.VerificationTokens, report.Sessions, report.TwoFactorChallenges)
	return nil
}

func runStatus(ctx context.Context, svc *service.AuthService, args []string) error {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	userFlag := flags.String("user", "", "account id")
	actionFlag := flags.String("action", "", "activate, deactivate or suspend")
	if err := flags.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		return fmt.Errorf("invalid -user: %w", err)
	}
	action := service.StatusAction(*actionFlag)
	switch action {
	case service.ActionActivate, service.ActionDeactivate, service.ActionSuspend:
	default:
		return errors.New("-action must be activate, deactivate or suspend")
	}

	user, err := svc.SetAccountStatus(ctx, userID, action)
	if err != nil {
		return err
	}
	fmt.Printf("%s status=%s active=%t\n", user.ID, user.Status, user.IsActive)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authctl purge | authctl status -user <id> -action activate|deactivate|suspend")
}
