// Command checkoutctl runs schema migrations and lets operators price or
// settle a checkout from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"scholarpay/internal/config"
	"scholarpay/internal/models"
	"scholarpay/internal/repositories"
	"scholarpay/internal/services"
	"scholarpay/internal/services/checkout"
	"scholarpay/internal/services/settlement"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "checkoutctl",
		Short:   "Operate the ScholarPay checkout service",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
		},
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedAdminCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect() (func(), error) {
	if err := repositories.Connect(); err != nil {
		return nil, err
	}
	return func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("⚠️ Failed to close PostgreSQL connection: %v", err)
			}
		}
	}, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the checkout tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			closeDB, err := connect()
			if err != nil {
				return err
			}
			defer closeDB()

			drop, _ := cmd.Flags().GetBool("drop")
			if drop {
				if config.IsProduction() {
					return errors.New("refusing to drop tables in production")
				}
				if err := repositories.DropAllTables(); err != nil {
					return fmt.Errorf("drop tables: %w", err)
				}
				fmt.Println("tables dropped")
			}
			return repositories.Migrate()
		},
	}
	cmd.Flags().Bool("drop", false, "Drop every table first (refused when ENV=production)")
	return cmd
}

func seedAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin user that receives payment notifications",
		Long: `Creates the admin user from ADMIN_EMAIL and ADMIN_NAME unless a user with
that email already exists. Set ADMIN_USER_ID to the printed id afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email := os.Getenv("ADMIN_EMAIL")
			name := config.GetEnv("ADMIN_NAME", "Platform Admin")
			if email == "" {
				return errors.New("ADMIN_EMAIL must be set in environment")
			}

			closeDB, err := connect()
			if err != nil {
				return err
			}
			defer closeDB()

			var existing models.User
			err = repositories.DB.Where("email = ?", email).First(&existing).Error
			if err == nil {
				fmt.Printf("admin user already exists (id %d)\n", existing.ID)
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			admin := models.User{Email: email, Name: name, Role: "admin"}
			if err := repositories.DB.Create(&admin).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("admin user created (id %d)\n", admin.ID)
			return nil
		},
	}
}

// offline builds the services against postgres only. Rates and settled
// sessions are not cached.
func offline() (*services.Container, func(), error) {
	settings := config.Load()
	pricing, err := config.LoadPricing(settings.PricingFile)
	if err != nil {
		return nil, nil, err
	}
	closeDB, err := connect()
	if err != nil {
		return nil, nil, err
	}
	return services.NewContainer(repositories.DB, nil, settings, pricing, nil), closeDB, nil
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [fee-type]",
		Short: "Price a fee for a user without creating a checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft, err := models.ParseFeeType(args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			userID, _ := flags.GetUint("user")
			rail, _ := flags.GetString("rail")
			coupon, _ := flags.GetString("coupon")
			req := checkout.Request{
				UserID:     userID,
				FeeType:    ft,
				Rail:       models.PaymentRail(rail),
				CouponCode: strings.TrimSpace(coupon),
			}
			if flags.Changed("scholarship") {
				id, _ := flags.GetUint("scholarship")
				req.ScholarshipID = &id
			}
			if flags.Changed("application") {
				id, _ := flags.GetUint("application")
				req.ApplicationID = &id
			}
			if flags.Changed("dependents") {
				n, _ := flags.GetInt("dependents")
				req.Dependents = &n
			}

			container, closeDB, err := offline()
			if err != nil {
				return err
			}
			defer closeDB()

			q, err := container.Checkout.Quote(context.Background(), req)
			if err != nil {
				return err
			}
			asJSON, _ := flags.GetBool("json")
			return printQuote(q, asJSON)
		},
	}

	cmd.Flags().UintP("user", "u", 0, "User id (required)")
	cmd.Flags().StringP("rail", "r", "card", "Payment rail (card, instant_transfer)")
	cmd.Flags().StringP("coupon", "c", "", "Coupon code")
	cmd.Flags().Uint("scholarship", 0, "Scholarship id")
	cmd.Flags().Uint("application", 0, "Application id")
	cmd.Flags().Int("dependents", 0, "Dependents count override")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printQuote(q *checkout.Quote, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}

	fmt.Printf("Fee:       %s (%s pricing)\n", q.FeeType.Description(), q.PricingMode)
	fmt.Printf("Base:      %s USD\n", q.BaseAmount.StringFixed(2))
	if q.Discount != nil {
		fmt.Printf("Discount:  %s\n", q.Discount.Kind)
	}
	if q.CouponRejection != nil {
		fmt.Printf("Coupon:    rejected (%s)\n", q.CouponRejection.Reason)
	}
	fmt.Printf("Net:       %s USD\n", q.NetAmount.StringFixed(2))
	if q.Rail == models.RailInstantTransfer {
		fmt.Printf("Rate:      %s\n", q.ExchangeRate)
	}
	fmt.Printf("Charge:    %s %s\n", q.GrossAmount().StringFixed(2), strings.ToUpper(q.Currency))
	return nil
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [session-id]",
		Short: "Settle a paid checkout session",
		Long: `Runs the same verification the success page and webhook use. Safe to run
any number of times; side effects are applied once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feeType, _ := cmd.Flags().GetString("fee")
			req := settlement.VerifyRequest{SessionID: args[0]}
			if feeType != "" {
				ft, err := models.ParseFeeType(feeType)
				if err != nil {
					return err
				}
				req.ExpectedFeeType = ft
			}

			container, closeDB, err := offline()
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := container.Verifier.Verify(context.Background(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s)\n", args[0], res.Status, res.State)
			if res.Details != nil && res.Details.TookOver {
				fmt.Println("resumed a stale settlement")
			}
			return nil
		},
	}
	cmd.Flags().StringP("fee", "f", "", "Expected fee type")
	return cmd
}
