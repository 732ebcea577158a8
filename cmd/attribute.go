package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/growthloop/decider/internal/model"
)

var (
	attrArtifactID string
	attrPhase      string
	attrLikes      int64
	attrRetweets   int64
	attrReplies    int64
	attrImpr       int64
	attrVisits     int64
	attrFollowers  int64
	attrTakenAt    string
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Record an outcome snapshot and compute its attribution",
	Long:  "Converts one phase's raw metrics reading into an attribution record. Safe to re-run for the same (artifact, phase); the record is overwritten, never duplicated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		takenAt := time.Now().UTC()
		if attrTakenAt != "" {
			t, err := time.Parse(time.RFC3339, attrTakenAt)
			if err != nil {
				return eris.Wrap(err, "parse --taken-at")
			}
			takenAt = t
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Attribution.Attribute(ctx, attrArtifactID, model.Phase(attrPhase), model.OutcomeSnapshot{
			Likes:         attrLikes,
			Retweets:      attrRetweets,
			Replies:       attrReplies,
			Impressions:   attrImpr,
			ProfileVisits: attrVisits,
			FollowerCount: attrFollowers,
			TakenAt:       takenAt,
		})
		if err != nil {
			return err
		}
		return printOut(rec)
	},
}

func init() {
	attributeCmd.Flags().StringVar(&attrArtifactID, "artifact", "", "published artifact id (required)")
	attributeCmd.Flags().StringVar(&attrPhase, "phase", "", "measurement phase: baseline, +2h, +24h, +48h (required)")
	attributeCmd.Flags().Int64Var(&attrLikes, "likes", 0, "like count")
	attributeCmd.Flags().Int64Var(&attrRetweets, "retweets", 0, "retweet count")
	attributeCmd.Flags().Int64Var(&attrReplies, "replies", 0, "reply count")
	attributeCmd.Flags().Int64Var(&attrImpr, "impressions", 0, "impression count")
	attributeCmd.Flags().Int64Var(&attrVisits, "profile-visits", 0, "profile visit count")
	attributeCmd.Flags().Int64Var(&attrFollowers, "followers", 0, "account follower count at reading time")
	attributeCmd.Flags().StringVar(&attrTakenAt, "taken-at", "", "reading time, RFC3339 (default now)")
	attributeCmd.MarkFlagRequired("artifact")
	attributeCmd.MarkFlagRequired("phase")

	rootCmd.AddCommand(attributeCmd)
}
