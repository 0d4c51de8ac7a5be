package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/provider"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/spf13/cobra"
)

type downloadFlags struct {
	provider string
	max      int
	year     int
	month    int
	months   []int
	from     string
	to       string
	force    bool
	otp      string
}

func downloadCmd() *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Run one download batch from the terminal",
		Long: `Log in to a provider, walk its invoice listing and store every matching
invoice that is not already on record.

When a one-time passcode is requested the command prompts for it.

Examples:
  invoice-fetcher download --max 10
  invoice-fetcher download -p freebox --year 2024
  invoice-fetcher download --from 2024-01-01 --to 2024-03-31 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			id := provider.Normalize(f.provider, a.cfg.DefaultProvider)
			run, err := a.providers.Get(id)
			if err != nil {
				return err
			}
			a.providers.SetOTPFunc(promptOTP)

			result, err := run.DownloadInvoices(ctx, req)
			if result != nil {
				fmt.Printf("%d invoice(s) downloaded\n", result.Count)
				for _, name := range result.Files {
					fmt.Printf("  %s\n", name)
				}
			}
			if err != nil {
				if service.IsOTPRequired(err) {
					return errors.New("a one-time passcode is required, pass --otp")
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "provider id (default from DEFAULT_PROVIDER)")
	cmd.Flags().IntVarP(&f.max, "max", "n", 0, "maximum number of invoices to download")
	cmd.Flags().IntVar(&f.year, "year", 0, "only invoices of this year")
	cmd.Flags().IntVar(&f.month, "month", 0, "only invoices of this month (1-12)")
	cmd.Flags().IntSliceVar(&f.months, "months", nil, "only invoices of these months, e.g. 1,2,3")
	cmd.Flags().StringVar(&f.from, "from", "", "range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "range end, YYYY-MM-DD")
	cmd.Flags().BoolVar(&f.force, "force", false, "download again even when already on record")
	cmd.Flags().StringVar(&f.otp, "otp", "", "one-time passcode")

	return cmd
}

func (f downloadFlags) request() (domain.DownloadRequest, error) {
	if f.max < 0 {
		return domain.DownloadRequest{}, fmt.Errorf("--max must be positive")
	}
	if f.month < 0 || f.month > 12 {
		return domain.DownloadRequest{}, fmt.Errorf("--month must be between 1 and 12")
	}
	for _, m := range f.months {
		if m < 1 || m > 12 {
			return domain.DownloadRequest{}, fmt.Errorf("--months values must be between 1 and 12, got %d", m)
		}
	}
	if (f.from == "") != (f.to == "") {
		return domain.DownloadRequest{}, fmt.Errorf("--from and --to must be given together")
	}

	start, err := domain.ParseDate(f.from)
	if err != nil {
		return domain.DownloadRequest{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := domain.ParseDate(f.to)
	if err != nil {
		return domain.DownloadRequest{}, fmt.Errorf("invalid --to: %w", err)
	}
	if start.Known() && end.Before(start.Time) {
		return domain.DownloadRequest{}, fmt.Errorf("--to must not be before --from")
	}

	return domain.DownloadRequest{
		MaxInvoices:     f.max,
		Year:            f.year,
		Month:           f.month,
		Months:          f.months,
		DateStart:       start,
		DateEnd:         end,
		ForceRedownload: f.force,
		OTPCode:         strings.TrimSpace(f.otp),
	}, nil
}

// promptOTP asks the operator for the passcode on the terminal
func promptOTP(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Enter the one-time passcode: ")

	line := make(chan string, 1)
	go func() {
		s, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		line <- strings.TrimSpace(s)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case code := <-line:
		if code == "" {
			return "", errors.New("no passcode entered")
		}
		return code, nil
	}
}
