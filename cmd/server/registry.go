package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/provider"
	"github.com/spf13/cobra"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the download registry",
	}
	cmd.AddCommand(registryListCmd())
	return cmd
}

func registryListCmd() *cobra.Command {
	var providerID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloaded invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := openRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer registry.Close()

			entries, err := registry.ListDownloaded(cmd.Context(), provider.Normalize(providerID, ""))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tORDER\tINVOICE DATE\tDOWNLOADED AT\tFILE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Provider, e.OrderID, e.InvoiceDateISO, e.DownloadedAtISO, e.FilePath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&providerID, "provider", "p", "", "only this provider")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
