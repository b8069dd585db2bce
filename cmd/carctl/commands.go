package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/car-advisor/internal/adapters/apiclient"
	"github.com/kirillkom/car-advisor/internal/core/domain"
)

type globalOptions struct {
	apiURL  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "carctl",
		Short: "Ask the car advisor for recommendations",
		Long: `carctl sends questions to a running car-advisor API.

Examples:
  carctl ask "SUV under 15 lakhs with 6 airbags"
  carctl ask --filter fuel_type=Diesel --filter price_max=20 "family car"
  carctl chat --session my-search
  carctl health`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("CAR_ADVISOR_API")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", defaultURL, "API base URL (env CAR_ADVISOR_API)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 120*time.Second, "request timeout")

	root.AddCommand(newAskCmd(opts), newChatCmd(opts), newHealthCmd(opts))
	return root
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		sessionID  string
		filters    []string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			client := apiclient.New(opts.apiURL, opts.timeout)
			resp, err := client.Chat(cmd.Context(), domain.TurnRequest{
				Query:     strings.Join(args, " "),
				Filters:   parsed,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "structured filter key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw JSON response")
	return cmd
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			client := apiclient.New(opts.apiURL, opts.timeout)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s (type 'exit' to quit)\n", sessionID)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				resp, err := client.Chat(cmd.Context(), domain.TurnRequest{Query: line, SessionID: sessionID})
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
					continue
				}
				printResponse(out, resp)
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: a new random id)")
	return cmd
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := apiclient.New(opts.apiURL, opts.timeout).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printResponse(w io.Writer, resp *domain.TurnResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Recommended) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recommended:")
	for i, rec := range resp.Recommended {
		fmt.Fprintf(w, "  %d. %s - ₹%.2fL", i+1, rec.Name, rec.Price)
		if rec.Mileage > 0 {
			fmt.Fprintf(w, ", %.1f kmpl", rec.Mileage)
		}
		fmt.Fprintln(w)
	}
}

// parseFilters turns key=value pairs into filters; numbers and booleans are typed.
func parseFilters(pairs []string) (domain.StructuredFilters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := domain.StructuredFilters{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", pair)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			filters[key] = n
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			filters[key] = b
			continue
		}
		filters[key] = value
	}
	return filters, nil
}
