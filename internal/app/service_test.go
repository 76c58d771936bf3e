package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/giteval/internal/adapters/notify"
	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/adapters/repository"
	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	svc    *app.Service
	client *platform.InMemoryClient
	store  repository.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table := rank.Default()
	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "users.json"), table)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	client := platform.NewInMemoryClient()
	client.AddChannel("promotions")
	dispatcher := notify.NewDispatcher(client, "promotions")
	svc := app.New(store, table, client, dispatcher)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() {
		svc.Stop()
		store.Close()
	})
	return &fixture{svc: svc, client: client, store: store}
}

func rankLabels(t *testing.T, client *platform.InMemoryClient, identity string) []string {
	t.Helper()
	attached, err := client.MemberRoles(context.Background(), identity)
	if err != nil {
		t.Fatalf("member roles: %v", err)
	}
	names := make([]string, 0, len(attached))
	for _, role := range attached {
		names = append(names, role.Name)
	}
	return names
}

func waitForAnnouncements(client *platform.InMemoryClient, want int) []string {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := client.ChannelMessages("promotions"); len(msgs) >= want {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	return client.ChannelMessages("promotions")
}

func TestRegister(t *testing.T) {
	Convey("Given a fresh service", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.client.AddMember("1234")

		Convey("A first registration starts at the lowest rank", func() {
			res, err := f.svc.Register(ctx, "1234", "octocat", "")
			So(err, ShouldBeNil)
			So(res.Rank, ShouldEqual, rank.Symbol("G"))
			So(res.Score, ShouldEqual, 0)
			So(res.ReconciliationError, ShouldBeEmpty)
			So(rankLabels(t, f.client, "1234"), ShouldResemble, []string{"Git-Eval: G (Generalist)"})

			Convey("Re-registering demands confirmation", func() {
				res2, err := f.svc.Register(ctx, "1234", "hubber", "")
				So(err, ShouldWrap, app.ErrConfirmationRequired)
				So(res2.ConfirmToken, ShouldNotBeEmpty)
				So(res2.LinkedHandle, ShouldEqual, "octocat")

				Convey("And a confirmed reset zeroes score and labels", func() {
					// Put the user somewhere above the floor first.
					_, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
						LinkedHandle: "octocat", ScoreDelta: 150,
					}, "")
					So(err, ShouldBeNil)

					res3, err := f.svc.Register(ctx, "1234", "hubber", res2.ConfirmToken)
					So(err, ShouldBeNil)
					So(res3.Rank, ShouldEqual, rank.Symbol("G"))

					status, err := f.svc.Status(ctx, "1234")
					So(err, ShouldBeNil)
					So(status.LinkedHandle, ShouldEqual, "hubber")
					So(status.Score, ShouldEqual, 0)
					So(rankLabels(t, f.client, "1234"), ShouldResemble, []string{"Git-Eval: G (Generalist)"})
				})

				Convey("And a stale token is rejected", func() {
					_, err := f.svc.Register(ctx, "1234", "hubber", "not-a-token")
					So(err, ShouldWrap, app.ErrBadConfirmation)
				})

				Convey("And a token cannot be redeemed twice", func() {
					_, err := f.svc.Register(ctx, "1234", "hubber", res2.ConfirmToken)
					So(err, ShouldBeNil)
					_, err = f.svc.Register(ctx, "1234", "hubber", res2.ConfirmToken)
					So(err, ShouldWrap, app.ErrBadConfirmation)
				})
			})
		})

		Convey("Blank identity or handle is rejected", func() {
			_, err := f.svc.Register(ctx, " ", "octocat", "")
			So(err, ShouldNotBeNil)
			_, err = f.svc.Register(ctx, "1234", "", "")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestProcessEvaluation(t *testing.T) {
	Convey("Given a registered member", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.client.AddMember("1234")
		_, err := f.svc.Register(ctx, "1234", "octocat", "")
		So(err, ShouldBeNil)

		Convey("A 150-point evaluation promotes G -> F", func() {
			out, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "octocat", ScoreDelta: 150, FeedbackText: "nice",
			}, "")
			So(err, ShouldBeNil)
			So(out.OldRank, ShouldEqual, rank.Symbol("G"))
			So(out.NewRank, ShouldEqual, rank.Symbol("F"))
			So(out.Score, ShouldEqual, 150)
			So(out.Promoted, ShouldBeTrue)
			So(out.ReconciliationError, ShouldBeEmpty)

			Convey("Exactly one role transition and one promotion broadcast happen", func() {
				So(rankLabels(t, f.client, "1234"), ShouldResemble, []string{"Git-Eval: F (Foundation)"})
				So(waitForAnnouncements(f.client, 1), ShouldHaveLength, 1)
			})

			Convey("The DM carries the delta and feedback", func() {
				dms := f.client.DirectMessages("1234")
				So(dms, ShouldHaveLength, 1)
				So(dms[0], ShouldContainSubstring, "+150 pt")
				So(dms[0], ShouldContainSubstring, "nice")
			})
		})

		Convey("Handle resolution is case-insensitive", func() {
			out, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "OctoCat", ScoreDelta: 10,
			}, "")
			So(err, ShouldBeNil)
			So(out.ExternalIdentity, ShouldEqual, "1234")
		})

		Convey("An unknown handle fails with ErrNotRegistered and no side effects", func() {
			_, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "stranger", ScoreDelta: 150,
			}, "")
			So(err, ShouldWrap, app.ErrNotRegistered)

			status, err := f.svc.Status(ctx, "1234")
			So(err, ShouldBeNil)
			So(status.Score, ShouldEqual, 0)
		})

		Convey("A skip-grade evaluation vaults the user into the asserted tier", func() {
			out, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "octocat", ScoreDelta: 80, AssertedRank: "D",
			}, "")
			So(err, ShouldBeNil)
			So(out.Score, ShouldEqual, 580)
			So(out.NewRank, ShouldEqual, rank.Symbol("D"))
		})

		Convey("A replayed delivery id does not mutate twice", func() {
			first, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "octocat", ScoreDelta: 150,
			}, "delivery-1")
			So(err, ShouldBeNil)
			So(first.Duplicate, ShouldBeFalse)

			second, err := f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
				LinkedHandle: "octocat", ScoreDelta: 150,
			}, "delivery-1")
			So(err, ShouldBeNil)
			So(second.Duplicate, ShouldBeTrue)
			So(second.Score, ShouldEqual, 150)

			status, err := f.svc.Status(ctx, "1234")
			So(err, ShouldBeNil)
			So(status.Score, ShouldEqual, 150)
		})
	})
}

func TestMemberLeftCommunity(t *testing.T) {
	Convey("Given a registered user the platform no longer resolves", t, func() {
		ctx := context.Background()
		f2 := newFixture(t)
		// Seed the store directly; the identity is absent from the platform.
		So(f2.store.Put(ctx, "4321", model.UserRecord{
			LinkedHandle: "drifter", Score: 0, Rank: "G",
		}), ShouldBeNil)

		out, err := f2.svc.ProcessEvaluation(ctx, model.EvaluationReport{
			LinkedHandle: "drifter", ScoreDelta: 150,
		}, "")
		So(err, ShouldBeNil)

		Convey("The call succeeds with a resolution soft error", func() {
			So(out.Score, ShouldEqual, 150)
			So(out.NewRank, ShouldEqual, rank.Symbol("F"))
			So(out.Promoted, ShouldBeFalse)
			So(out.ReconciliationError, ShouldContainSubstring, "member not found")
		})

		Convey("The committed score survives", func() {
			status, err := f2.svc.Status(ctx, "4321")
			So(err, ShouldBeNil)
			So(status.Score, ShouldEqual, 150)
		})
	})
}

func TestStatus(t *testing.T) {
	Convey("Given a registered member with 150 points", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.client.AddMember("1234")
		_, err := f.svc.Register(ctx, "1234", "octocat", "")
		So(err, ShouldBeNil)
		_, err = f.svc.ProcessEvaluation(ctx, model.EvaluationReport{
			LinkedHandle: "octocat", ScoreDelta: 150,
		}, "")
		So(err, ShouldBeNil)

		Convey("Status reports rank, remaining and progress", func() {
			status, err := f.svc.Status(ctx, "1234")
			So(err, ShouldBeNil)
			So(status.Rank, ShouldEqual, rank.Symbol("F"))
			So(status.RankName, ShouldEqual, "Foundation")
			So(status.Score, ShouldEqual, 150)
			So(*status.RemainingToNext, ShouldEqual, 100)
			So(*status.ProgressFraction, ShouldAlmostEqual, 1.0/3.0)
		})

		Convey("A terminal-rank user has no remaining or progress", func() {
			So(f.store.Put(ctx, "1234", model.UserRecord{
				LinkedHandle: "octocat", Score: 9000, Rank: "S",
			}), ShouldBeNil)

			status, err := f.svc.Status(ctx, "1234")
			So(err, ShouldBeNil)
			So(status.Rank, ShouldEqual, rank.Symbol("S"))
			So(status.RemainingToNext, ShouldBeNil)
			So(status.ProgressFraction, ShouldBeNil)
		})

		Convey("An unknown identity yields ErrUnknownUser", func() {
			_, err := f.svc.Status(ctx, "0000")
			So(err, ShouldWrap, app.ErrUnknownUser)
		})
	})
}
