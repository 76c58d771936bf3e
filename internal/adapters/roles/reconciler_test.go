package roles_test

import (
	"context"
	"testing"

	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/adapters/roles"
	"github.com/okian/giteval/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

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

func TestReconcile(t *testing.T) {
	Convey("Given a member at rank G", t, func() {
		ctx := context.Background()
		client := platform.NewInMemoryClient()
		client.AddMember("1234")
		rec := roles.NewReconciler(client, rank.Default())

		_, err := rec.Reconcile(ctx, "1234", "G", "G")
		So(err, ShouldBeNil)

		Convey("A promotion to F swaps the labels", func() {
			transitioned, err := rec.Reconcile(ctx, "1234", "G", "F")
			So(err, ShouldBeNil)
			So(transitioned, ShouldBeTrue)
			So(rankLabels(t, client, "1234"), ShouldResemble, []string{"Git-Eval: F (Foundation)"})

			Convey("And repeating the same reconciliation is idempotent", func() {
				transitioned, err := rec.Reconcile(ctx, "1234", "G", "F")
				So(err, ShouldBeNil)
				So(transitioned, ShouldBeTrue)
				So(rankLabels(t, client, "1234"), ShouldResemble, []string{"Git-Eval: F (Foundation)"})
			})
		})

		Convey("An unchanged rank repairs drift but reports no transition", func() {
			role, err := client.RoleByName(ctx, "Git-Eval: G (Generalist)")
			So(err, ShouldBeNil)
			So(client.DetachRole(ctx, "1234", role.ID), ShouldBeNil)

			transitioned, err := rec.Reconcile(ctx, "1234", "G", "G")
			So(err, ShouldBeNil)
			So(transitioned, ShouldBeFalse)
			So(rankLabels(t, client, "1234"), ShouldResemble, []string{"Git-Eval: G (Generalist)"})
		})

		Convey("A missing label is created on demand", func() {
			transitioned, err := rec.Reconcile(ctx, "1234", "G", "D")
			So(err, ShouldBeNil)
			So(transitioned, ShouldBeTrue)
			So(rankLabels(t, client, "1234"), ShouldResemble, []string{"Git-Eval: D (Developer)"})
		})

		Convey("A member who left the community yields a resolution failure", func() {
			_, err := rec.Reconcile(ctx, "gone", "G", "F")
			So(err, ShouldWrap, platform.ErrMemberNotFound)
		})
	})
}

func TestWarmUp(t *testing.T) {
	Convey("Given an empty role catalog", t, func() {
		ctx := context.Background()
		client := platform.NewInMemoryClient()
		table := rank.Default()
		rec := roles.NewReconciler(client, table)

		So(rec.WarmUp(ctx), ShouldBeNil)

		Convey("Every tier has its label", func() {
			for _, tier := range table.Tiers() {
				_, err := client.RoleByName(ctx, rec.LabelName(tier.Symbol))
				So(err, ShouldBeNil)
			}
		})

		Convey("A second warm-up creates nothing new", func() {
			before, err := client.RoleByName(ctx, rec.LabelName("S"))
			So(err, ShouldBeNil)
			So(rec.WarmUp(ctx), ShouldBeNil)
			after, err := client.RoleByName(ctx, rec.LabelName("S"))
			So(err, ShouldBeNil)
			So(after.ID, ShouldEqual, before.ID)
		})
	})
}

func TestDetachAll(t *testing.T) {
	Convey("Given a member holding two rank labels", t, func() {
		ctx := context.Background()
		client := platform.NewInMemoryClient()
		client.AddMember("1234")
		rec := roles.NewReconciler(client, rank.Default())

		_, err := rec.Reconcile(ctx, "1234", "G", "G")
		So(err, ShouldBeNil)
		f, err := client.CreateRole(ctx, rec.LabelName("F"))
		So(err, ShouldBeNil)
		So(client.AttachRole(ctx, "1234", f.ID), ShouldBeNil)

		Convey("DetachAll strips every rank label", func() {
			So(rec.DetachAll(ctx, "1234"), ShouldBeNil)
			So(rankLabels(t, client, "1234"), ShouldBeEmpty)
		})
	})
}

func TestCustomPrefix(t *testing.T) {
	Convey("Given a reconciler with a custom prefix", t, func() {
		rec := roles.NewReconciler(platform.NewInMemoryClient(), rank.Default(), roles.WithNamePrefix("Dojo"))
		So(rec.LabelName("A"), ShouldEqual, "Dojo: A (Architect)")
	})
}
