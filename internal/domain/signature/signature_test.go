package signature_test

import (
	"testing"

	"github.com/okian/giteval/internal/domain/signature"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerifier(t *testing.T) {
	Convey("Given a verifier with a shared secret", t, func() {
		v, err := signature.NewVerifier("hunter2")
		So(err, ShouldBeNil)
		body := []byte(`{"linked_handle":"octocat","score_delta":10}`)

		Convey("A token signed over the same bytes verifies", func() {
			So(v.Verify(body, v.Sign(body)), ShouldBeNil)
		})

		Convey("A body altered by one byte after signing is rejected", func() {
			token := v.Sign(body)
			tampered := append([]byte{}, body...)
			tampered[len(tampered)-2]++
			So(v.Verify(tampered, token), ShouldWrap, signature.ErrSignatureMismatch)
		})

		Convey("A token produced with a different secret is rejected", func() {
			other, err := signature.NewVerifier("hunter3")
			So(err, ShouldBeNil)
			So(v.Verify(body, other.Sign(body)), ShouldWrap, signature.ErrSignatureMismatch)
		})

		Convey("A missing token is rejected", func() {
			So(v.Verify(body, ""), ShouldWrap, signature.ErrMissingSignature)
		})

		Convey("A token without the algorithm prefix is rejected", func() {
			So(v.Verify(body, "md5=abcdef"), ShouldWrap, signature.ErrMalformedSignature)
		})

		Convey("A token with a truncated digest is rejected", func() {
			So(v.Verify(body, "sha256=deadbeef"), ShouldWrap, signature.ErrMalformedSignature)
		})

		Convey("A token with non-hex digest bytes is rejected", func() {
			So(v.Verify(body, "sha256=zz"), ShouldWrap, signature.ErrMalformedSignature)
		})
	})

	Convey("An empty secret is rejected at construction", t, func() {
		_, err := signature.NewVerifier("")
		So(err, ShouldWrap, signature.ErrEmptySecret)
	})
}
