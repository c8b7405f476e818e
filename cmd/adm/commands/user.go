package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/services"
	contextutils "safereport/internal/utils"

	"github.com/spf13/cobra"
)

// PasswordReader reads a secret without echoing it
type PasswordReader func(prompt string) (string, error)

// TerminalPassword prompts on stdout and reads from the controlling terminal
func TerminalPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
	}
	return string(b), nil
}

// UserCommands returns the user management commands
func UserCommands(userService services.UserServiceInterface, logger *observability.Logger, readPassword PasswordReader) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for SafeReport.

Available commands:
  list             - List all accounts
  create           - Create an account with a given role
  set-role         - Change an account's role
  set-credibility  - Change a reporter's credibility score`,
	}

	userCmd.AddCommand(listUsersCmd(userService))
	userCmd.AddCommand(createUserCmd(userService, logger, readPassword))
	userCmd.AddCommand(setRoleCmd(userService, logger))
	userCmd.AddCommand(setCredibilityCmd(userService, logger))

	return userCmd
}

func listUsersCmd(userService services.UserServiceInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := userService.ListUsers(cmd.Context())
			if err != nil {
				return contextutils.WrapError(err, "failed to list users")
			}
			if len(users) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No users found")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tCREDIBILITY\tCREATED")
			for _, u := range users {
				email := "-"
				if u.Email.Valid {
					email = u.Email.String
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
					u.ID, u.Username, email, u.Role, u.CredibilityScore, u.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}

func createUserCmd(userService services.UserServiceInterface, logger *observability.Logger, readPassword PasswordReader) *cobra.Command {
	var email, role, password string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Long:  `Create an account. Without --password the password is prompted for twice.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parsedRole, ok := models.ParseUserRole(role)
			if !ok {
				return contextutils.ErrorWithContextf("unknown role %q", role)
			}

			if password == "" {
				var err error
				if password, err = promptPassword(readPassword); err != nil {
					return err
				}
			}

			user, err := userService.CreateUser(ctx, args[0], email, password, parsedRole)
			if err != nil {
				logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"username": args[0]})
				return contextutils.WrapErrorf(err, "failed to create user '%s'", args[0])
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s account '%s' (ID: %s)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAgency), "Role: citizen, agency or admin")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func promptPassword(readPassword PasswordReader) (string, error) {
	password, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", contextutils.ErrorWithContextf("passwords do not match")
	}
	return password, nil
}

func setRoleCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <username> <role>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			role, ok := models.ParseUserRole(args[1])
			if !ok {
				return contextutils.ErrorWithContextf("unknown role %q", args[1])
			}

			user, err := lookupUser(cmd, userService, args[0])
			if err != nil {
				return err
			}

			if err := userService.SetRole(ctx, user.ID, role); err != nil {
				logger.Error(ctx, "Failed to set role", err, map[string]interface{}{"user_id": user.ID, "role": string(role)})
				return contextutils.WrapErrorf(err, "failed to set role for '%s'", user.Username)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "'%s' is now %s (was %s)\n", user.Username, role, user.Role)
			return nil
		},
	}
}

func setCredibilityCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set-credibility <username> <score>",
		Short: "Change a reporter's credibility score",
		Long:  `Set the credibility score (0 to 5) sent to the scoring oracle with this reporter's future submissions.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			score, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil {
				return contextutils.ErrorWithContextf("score must be a number: %v", err)
			}

			user, err := lookupUser(cmd, userService, args[0])
			if err != nil {
				return err
			}

			if err := userService.SetCredibility(ctx, user.ID, score); err != nil {
				logger.Error(ctx, "Failed to set credibility", err, map[string]interface{}{"user_id": user.ID})
				return contextutils.WrapErrorf(err, "failed to set credibility for '%s'", user.Username)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Credibility of '%s' set to %.2f\n", user.Username, score)
			return nil
		},
	}
}

func lookupUser(cmd *cobra.Command, userService services.UserServiceInterface, username string) (*models.User, error) {
	user, err := userService.GetUserByUsername(cmd.Context(), username)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get user '%s'", username)
	}
	if user == nil {
		return nil, contextutils.ErrorWithContextf("user '%s' not found", username)
	}
	return user, nil
}
