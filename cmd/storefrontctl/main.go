package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "storefrontctl",
		Short:   "Operator tooling for the storefront payment service",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("db", "", "Postgres connection string (default $DB_SOURCE)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env resolves settings from flags first, then the process environment.
func env(cmd *cobra.Command, bindings map[string]string) *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	return v
}

func dbSource(cmd *cobra.Command) (string, error) {
	src := env(cmd, map[string]string{"DB_SOURCE": "db"}).GetString("DB_SOURCE")
	if src == "" {
		return "", fmt.Errorf("DB_SOURCE environment variable or --db flag is required")
	}
	return src, nil
}
