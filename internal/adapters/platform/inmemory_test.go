package platform_test

import (
	"context"
	"testing"

	"github.com/okian/giteval/internal/adapters/platform"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryClient(t *testing.T) {
	Convey("Given an in-memory platform with one member", t, func() {
		ctx := context.Background()
		client := platform.NewInMemoryClient()
		client.AddMember("1234")

		Convey("Known members resolve, unknown ones do not", func() {
			So(client.ResolveMember(ctx, "1234"), ShouldBeNil)
			So(client.ResolveMember(ctx, "9999"), ShouldWrap, platform.ErrMemberNotFound)
		})

		Convey("CreateRole is idempotent by name", func() {
			first, err := client.CreateRole(ctx, "Git-Eval: G (Generalist)")
			So(err, ShouldBeNil)
			second, err := client.CreateRole(ctx, "Git-Eval: G (Generalist)")
			So(err, ShouldBeNil)
			So(second.ID, ShouldEqual, first.ID)

			found, err := client.RoleByName(ctx, "Git-Eval: G (Generalist)")
			So(err, ShouldBeNil)
			So(found.ID, ShouldEqual, first.ID)
		})

		Convey("Attach and detach tolerate repeats", func() {
			role, err := client.CreateRole(ctx, "Git-Eval: F (Foundation)")
			So(err, ShouldBeNil)

			So(client.AttachRole(ctx, "1234", role.ID), ShouldBeNil)
			So(client.AttachRole(ctx, "1234", role.ID), ShouldBeNil)

			roles, err := client.MemberRoles(ctx, "1234")
			So(err, ShouldBeNil)
			So(roles, ShouldHaveLength, 1)

			So(client.DetachRole(ctx, "1234", role.ID), ShouldBeNil)
			So(client.DetachRole(ctx, "1234", role.ID), ShouldBeNil)

			roles, err = client.MemberRoles(ctx, "1234")
			So(err, ShouldBeNil)
			So(roles, ShouldBeEmpty)
		})

		Convey("Announce requires a known channel", func() {
			So(client.Announce(ctx, "promotions", "hello"), ShouldWrap, platform.ErrChannelNotFound)

			client.AddChannel("promotions")
			So(client.Announce(ctx, "promotions", "hello"), ShouldBeNil)
			So(client.ChannelMessages("promotions"), ShouldResemble, []string{"hello"})
		})

		Convey("DMs respect recipient blocks", func() {
			So(client.DirectMessage(ctx, "1234", "hi"), ShouldBeNil)
			So(client.DirectMessages("1234"), ShouldResemble, []string{"hi"})

			client.BlockDMs("1234")
			So(client.DirectMessage(ctx, "1234", "hi again"), ShouldWrap, platform.ErrDMForbidden)
		})
	})
}
