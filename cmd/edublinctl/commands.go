package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/match"
	"github.com/oggyb/edublin-connect/internal/server"
	"github.com/oggyb/edublin-connect/internal/service/auth"
	"github.com/oggyb/edublin-connect/internal/service/ops"
	"github.com/oggyb/edublin-connect/internal/service/search"
)

type options struct {
	addr    string
	token   string
	locale  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:          "edublinctl",
		Short:        "Inspect and operate an Edublin Connect gateway",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.addr, "addr", "localhost:50051", "gateway gRPC address")
	root.PersistentFlags().StringVar(&o.token, "token", "", "bearer session token")
	root.PersistentFlags().StringVar(&o.locale, "locale", "", "language of error messages (pt-BR, en)")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 10*time.Second, "per-command deadline")

	root.AddCommand(
		statusCmd(o),
		resetBreakerCmd(o),
		forceFallbackCmd(o),
		signInCmd(o),
		searchCmd(o),
	)
	return root
}

// invoke dials, performs one unary call and prints the reply as JSON.
func invoke[Req, Resp any](cmd *cobra.Command, o *options, service, method string, req *Req) error {
	cc, err := server.Dial(o.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", o.addr, err)
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	ctx = server.WithSession(ctx, o.token)
	if o.locale != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "accept-language", o.locale)
	}

	resp, err := server.Invoke[Req, Resp](ctx, cc, service, method, req)
	if err != nil {
		st := status.Convert(err)
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func statusCmd(o *options) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the breaker state and serving mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if probe {
				return invoke[emptypb.Empty, gateway.ConnectionStatus](cmd, o, ops.ServiceName, "TestConnection", &emptypb.Empty{})
			}
			return invoke[emptypb.Empty, gateway.Status](cmd, o, ops.ServiceName, "Status", &emptypb.Empty{})
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "test the backend connection instead")
	return cmd
}

func resetBreakerCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-breaker",
		Short: "Close the breaker and clear the fallback latch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke[emptypb.Empty, gateway.Status](cmd, o, ops.ServiceName, "ResetBreaker", &emptypb.Empty{})
		},
	}
}

func forceFallbackCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "force-fallback [reason]",
		Short: "Serve fallback data until the breaker is reset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &ops.ForceFallbackRequest{}
			if len(args) == 1 {
				req.Reason = args[0]
			}
			return invoke[ops.ForceFallbackRequest, gateway.Status](cmd, o, ops.ServiceName, "ForceFallback", req)
		},
	}
}

func signInCmd(o *options) *cobra.Command {
	req := &auth.SignInRequest{}
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print the user and session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke[auth.SignInRequest, auth.AuthReply](cmd, o, auth.ServiceName, "SignIn", req)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func searchCmd(o *options) *cobra.Command {
	var c match.Criteria
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find travellers heading to a destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke[search.SearchUsersRequest, search.ProfilesReply](cmd, o, search.ServiceName, "SearchUsers", &search.SearchUsersRequest{Criteria: c})
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.DestinationCountry, "country", "", "destination country")
	f.StringVar(&c.DestinationCity, "city", "", "destination city")
	f.StringVar(&c.YearMonth, "month", "", "arrival month, YYYY-MM")
	f.StringVar(&c.OriginCity, "from", "", "origin city")
	f.StringVar(&c.School, "school", "", "school name")
	f.StringVar(&c.Airline, "airline", "", "airline")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
