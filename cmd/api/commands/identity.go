package commands

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/domain/themes"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/identity"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// NewIdentityCommand creates the device identity command
func NewIdentityCommand() *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Device guest identity",
		Long:  "Show, create, rename or forget the guest identity stored on this device",
	}

	identityCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored identity",
		Run: func(cmd *cobra.Command, args []string) {
			svc := identityService()
			id, ok, err := svc.Current()
			if err != nil {
				log.Fatalf("Failed to read identity: %v", err)
			}
			if !ok {
				fmt.Println("No identity on this device. Run `companion identity init`.")
				return
			}
			printIdentity(id.GuestID, id.DisplayName, id.NeedsOnboarding)
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the guest identity if there is none",
		Run: func(cmd *cobra.Command, args []string) {
			id, err := identityService().Ensure()
			if err != nil {
				log.Fatalf("Failed to create identity: %v", err)
			}
			printIdentity(id.GuestID, id.DisplayName, id.NeedsOnboarding)
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "rename <name>",
		Short: "Set the display name",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := identityService().Rename(strings.Join(args, " "))
			if err != nil {
				log.Fatalf("Failed to rename: %v", err)
			}
			printIdentity(id.GuestID, id.DisplayName, id.NeedsOnboarding)
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the guest identity",
		Run: func(cmd *cobra.Command, args []string) {
			if err := identityService().Reset(); err != nil {
				log.Fatalf("Failed to reset identity: %v", err)
			}
			fmt.Println("Identity cleared")
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the device identity",
		Run: func(cmd *cobra.Command, args []string) {
			svc := identityService()
			id, err := svc.Ensure()
			if err != nil {
				log.Fatalf("Failed to load identity: %v", err)
			}
			token, err := svc.IssueToken(id)
			if err != nil {
				log.Fatalf("Failed to issue token: %v", err)
			}
			fmt.Println(token)
		},
	})

	return identityCmd
}

// NewThemesCommand creates the theme listing command
func NewThemesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List the available themes",
		Run: func(cmd *cobra.Command, args []string) {
			list := themes.All()
			if t, _ := cmd.Flags().GetString("type"); t != "" {
				list = themes.ByType(themes.Type(strings.ToUpper(t)))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNAME")
			for _, th := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", th.ID, th.Type, th.Name)
			}
			w.Flush()
		},
	}
	cmd.Flags().String("type", "", "Only STATIC or LIVE themes")
	return cmd
}

func identityService() *services.IdentityService {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return services.NewIdentityService(identity.NewFileStore(cfg.Identity.File), cfg.JWT, logger.NewNop())
}

func printIdentity(guestID, name string, onboarding bool) {
	fmt.Printf("Guest ID:     %s\n", guestID)
	fmt.Printf("Display name: %s\n", name)
	if onboarding {
		fmt.Println("Onboarding:   pending")
	}
}
