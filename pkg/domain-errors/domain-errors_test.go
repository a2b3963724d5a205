package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: These are core error primitives used at every trust boundary.
// Unit tests ensure invariants like "wrapped domain errors preserve original kind"
// and "every kind maps to exactly one status and code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestKindTable() {
	expected := map[Kind]struct {
		status int
		code   string
	}{
		KindValidation:     {http.StatusBadRequest, "VALIDATION_ERROR"},
		KindAuthentication: {http.StatusUnauthorized, "AUTHENTICATION_ERROR"},
		KindAuthorization:  {http.StatusForbidden, "AUTHORIZATION_ERROR"},
		KindNotFound:       {http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		KindConflict:       {http.StatusConflict, "RESOURCE_CONFLICT"},
		KindBusinessLogic:  {http.StatusUnprocessableEntity, "BUSINESS_LOGIC_ERROR"},
		KindRateLimited:    {http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		KindUnavailable:    {http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		KindInternal:       {http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	s.Require().Len(Kinds(), len(expected))
	for _, k := range Kinds() {
		s.Run(k.String(), func() {
			want, ok := expected[k]
			s.Require().True(ok)
			s.Equal(want.status, k.Status())
			s.Equal(want.code, k.Code())
		})
	}

	s.Run("out of range kind reports internal", func() {
		s.Equal(http.StatusInternalServerError, Kind(99).Status())
		s.Equal(CodeInternal, Kind(-1).Code())
	})
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := NotFound("user not found", "user")
		s.Equal("user not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := New(KindConflict, "")
		s.Equal("RESOURCE_CONFLICT", err.Error())
	})
}

func (s *DomainErrorsSuite) TestConstructorDetails() {
	s.Run("validation carries field errors", func() {
		err := Validation("invalid input", map[string][]string{"email": {"required"}})
		de, ok := As(err)
		s.Require().True(ok)
		s.Equal(KindValidation, de.Kind())
		s.Equal(map[string][]string{"email": {"required"}}, de.Details()[DetailFieldErrors])
	})

	s.Run("business logic carries business code", func() {
		err := BusinessLogic("slot already taken", "SLOT_CONFLICT")
		de, ok := As(err)
		s.Require().True(ok)
		s.Equal(http.StatusUnprocessableEntity, de.Status())
		s.Equal("BUSINESS_LOGIC_ERROR", de.Code())
		s.Equal("SLOT_CONFLICT", de.BusinessCode())
		s.Equal("SLOT_CONFLICT", de.Details()[DetailBusinessCode])
	})

	s.Run("not found carries resource type", func() {
		de, _ := As(NotFound("appointment not found", "appointment"))
		s.Equal("appointment", de.Details()[DetailResourceType])
	})

	s.Run("rate limited carries retry after", func() {
		de, _ := As(RateLimited("slow down", 42))
		s.Equal(42, de.Details()[DetailRetryAfter])
	})

	s.Run("rate limited omits zero retry after", func() {
		de, _ := As(RateLimited("slow down", 0))
		s.NotContains(de.Details(), DetailRetryAfter)
	})

	s.Run("details is never nil", func() {
		de, _ := As(Internal("boom"))
		s.NotNil(de.Details())
		s.Empty(de.Details())
	})
}

func (s *DomainErrorsSuite) TestImmutability() {
	s.Run("mutating returned details does not affect error", func() {
		de, _ := As(NotFound("missing", "article"))
		d := de.Details()
		d[DetailResourceType] = "review"
		d["extra"] = true

		s.Equal("article", de.Details()[DetailResourceType])
		s.NotContains(de.Details(), "extra")
	})

	s.Run("mutating input map does not affect error", func() {
		in := map[string]any{"slot": "10:00"}
		de, _ := As(WithDetails(KindConflict, "taken", in))
		in["slot"] = "11:00"

		s.Equal("10:00", de.Details()["slot"])
	})

	s.Run("mutating field error slices does not affect error", func() {
		in := map[string][]string{"name": {"too short"}}
		de, _ := As(Validation("invalid", in))
		in["name"][0] = "changed"

		s.Equal([]string{"too short"}, de.Details()[DetailFieldErrors].(map[string][]string)["name"])
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := Wrap(inner, KindUnavailable, "service error")
		s.Equal(inner, errors.Unwrap(err))
	})

	s.Run("returns nil when no wrapped error", func() {
		err := New(KindNotFound, "not found")
		s.Nil(errors.Unwrap(err))
	})
}

func (s *DomainErrorsSuite) TestIs() {
	s.Run("matches by kind", func() {
		err := NotFound("user not found", "user")
		s.True(errors.Is(err, New(KindNotFound, "")))
		s.False(errors.Is(err, New(KindConflict, "")))
	})

	s.Run("matches through fmt wrapping", func() {
		err := fmt.Errorf("loading profile: %w", Authorization("not yours"))
		s.True(errors.Is(err, New(KindAuthorization, "")))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("wraps foreign error with given kind", func() {
		err := Wrap(errors.New("timeout"), KindUnavailable, "store unreachable")
		s.True(HasKind(err, KindUnavailable))
		s.Equal("store unreachable", err.Error())
	})

	s.Run("preserves original kind and details when enriching", func() {
		original := BusinessLogic("slot taken", "SLOT_CONFLICT")
		enriched := Wrap(original, KindInternal, "booking appointment: slot taken")

		de, ok := As(enriched)
		s.Require().True(ok)
		s.Equal(KindBusinessLogic, de.Kind())
		s.Equal("SLOT_CONFLICT", de.BusinessCode())
		s.Equal("booking appointment: slot taken", de.Message())
		s.ErrorIs(enriched, original)
	})

	s.Run("preserves kind through fmt wrapping", func() {
		original := fmt.Errorf("repo: %w", NotFound("gone", "review"))
		enriched := Wrap(original, KindInternal, "load review")
		s.True(HasKind(enriched, KindNotFound))
	})
}

func (s *DomainErrorsSuite) TestHasKind() {
	s.True(HasKind(Conflict("dup"), KindConflict))
	s.False(HasKind(Conflict("dup"), KindNotFound))
	s.False(HasKind(errors.New("plain"), KindInternal))
	s.False(HasKind(nil, KindInternal))
}
