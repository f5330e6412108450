package session_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medshift/staffing-platform/internal/session"
)

var _ = Describe("Restore Tokens", func() {
	const secret = "test-secret-at-least-32-bytes-long!!"

	It("round-trips session id, original user and target", func() {
		gen := session.NewJWTRestoreTokenGenerator(secret, 15*time.Minute)
		target := int64(7)

		token, err := gen.Generate("sess-abc", 42, &target)
		Expect(err).NotTo(HaveOccurred())

		claims, err := gen.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.SessionID).To(Equal("sess-abc"))
		Expect(claims.OriginalUserID).To(Equal(int64(42)))
		Expect(*claims.ImpersonatedUserID).To(Equal(int64(7)))
	})

	It("omits the target on a plain session token", func() {
		gen := session.NewJWTRestoreTokenGenerator(secret, 15*time.Minute)

		token, err := gen.Generate("sess-abc", 42, nil)
		Expect(err).NotTo(HaveOccurred())

		claims, err := gen.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.ImpersonatedUserID).To(BeNil())
	})

	It("rejects a token signed with a different secret", func() {
		gen := session.NewJWTRestoreTokenGenerator(secret, 15*time.Minute)
		other := session.NewJWTRestoreTokenGenerator("another-secret-also-32-bytes-long!!!", 15*time.Minute)

		token, err := other.Generate("sess-abc", 42, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.Validate(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an expired token", func() {
		gen := session.NewJWTRestoreTokenGenerator(secret, time.Nanosecond)

		token, err := gen.Generate("sess-abc", 42, nil)
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(10 * time.Millisecond)
		_, err = gen.Validate(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects garbage input", func() {
		gen := session.NewJWTRestoreTokenGenerator(secret, 15*time.Minute)
		_, err := gen.Validate("definitely-not-a-jwt")
		Expect(err).To(HaveOccurred())
	})
})
