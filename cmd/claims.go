package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/claims"
	"github.com/sells-group/places-cli/internal/model"
)

var (
	claimEmail         string
	claimPhone         string
	claimJustification string
	claimOwnerRef      string
	verifyReject       bool
	verifyNotes        string
	verifyRef          string
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Manage business ownership claims",
}

var claimsClaimCmd = &cobra.Command{
	Use:   "claim <place-id>",
	Short: "Claim a place on behalf of its owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		receipt, err := claims.NewManager(st).Claim(ctx, claims.ClaimRequest{
			PlaceID:       args[0],
			ContactEmail:  claimEmail,
			ContactPhone:  claimPhone,
			Justification: claimJustification,
			OwnerRef:      claimOwnerRef,
		})
		if err != nil {
			return eris.Wrap(err, "claim")
		}

		return json.NewEncoder(os.Stdout).Encode(receipt)
	},
}

var claimsVerifyCmd = &cobra.Command{
	Use:   "verify <place-id>",
	Short: "Approve or reject a pending claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		outcome := model.StatusVerified
		if verifyReject {
			outcome = model.StatusRejected
		}

		if err := claims.NewManager(st).Verify(ctx, args[0], outcome, verifyNotes, verifyRef); err != nil {
			return eris.Wrap(err, "verify")
		}

		zap.L().Info("claim adjudicated",
			zap.String("place_id", args[0]),
			zap.String("outcome", string(outcome)),
		)
		return nil
	},
}

var claimsCancelCmd = &cobra.Command{
	Use:   "cancel <place-id>",
	Short: "Release a claim before verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := claims.NewManager(st).CancelClaim(ctx, args[0], claimOwnerRef); err != nil {
			return eris.Wrap(err, "cancel claim")
		}

		zap.L().Info("claim cancelled", zap.String("place_id", args[0]))
		return nil
	},
}

var claimsHistoryCmd = &cobra.Command{
	Use:   "history <place-id>",
	Short: "Show the lifecycle events of a place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		events, err := claims.NewManager(st).History(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var claimsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show claim counts per lifecycle state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := claims.NewManager(st).CollectStats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		return json.NewEncoder(os.Stdout).Encode(stats)
	},
}

func init() {
	claimsClaimCmd.Flags().StringVar(&claimEmail, "email", "", "owner contact email (required)")
	claimsClaimCmd.Flags().StringVar(&claimPhone, "phone", "", "owner contact phone")
	claimsClaimCmd.Flags().StringVar(&claimJustification, "justification", "", "why this claimant owns the business")
	claimsClaimCmd.Flags().StringVar(&claimOwnerRef, "owner", "", "claimant reference")
	_ = claimsClaimCmd.MarkFlagRequired("email")

	claimsVerifyCmd.Flags().BoolVar(&verifyReject, "reject", false, "reject the claim instead of approving it")
	claimsVerifyCmd.Flags().StringVar(&verifyNotes, "notes", "", "adjudication notes")
	claimsVerifyCmd.Flags().StringVar(&verifyRef, "verifier", "", "verifier reference")

	claimsCancelCmd.Flags().StringVar(&claimOwnerRef, "owner", "", "claimant reference (required)")
	_ = claimsCancelCmd.MarkFlagRequired("owner")

	claimsCmd.AddCommand(claimsClaimCmd, claimsVerifyCmd, claimsCancelCmd, claimsHistoryCmd, claimsStatsCmd)
	rootCmd.AddCommand(claimsCmd)
}
