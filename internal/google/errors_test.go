// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package google_test

import (
	"net/http"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"google.golang.org/api/googleapi"
	gc "gopkg.in/check.v1"

	"github.com/cloudlift/airlift/internal/google"
)

type errorsSuite struct{}

var _ = gc.Suite(&errorsSuite{})

func (*errorsSuite) TestConflictDetected(c *gc.C) {
	err := &googleapi.Error{Code: http.StatusConflict}
	c.Check(google.IsConflict(err), jc.IsTrue)
	c.Check(google.IsNotFound(err), jc.IsFalse)
}

func (*errorsSuite) TestNotFoundDetected(c *gc.C) {
	err := &googleapi.Error{Code: http.StatusNotFound}
	c.Check(google.IsNotFound(err), jc.IsTrue)
	c.Check(google.IsConflict(err), jc.IsFalse)
}

func (*errorsSuite) TestAnnotatedErrorsStillClassified(c *gc.C) {
	err := errors.Annotate(&googleapi.Error{Code: http.StatusConflict}, "creating account")
	c.Check(google.IsConflict(err), jc.IsTrue)
}

func (*errorsSuite) TestOtherErrorsAreNeither(c *gc.C) {
	c.Check(google.IsConflict(&googleapi.Error{Code: http.StatusForbidden}), jc.IsFalse)
	c.Check(google.IsNotFound(&googleapi.Error{Code: http.StatusForbidden}), jc.IsFalse)
	c.Check(google.IsConflict(errors.New("boom")), jc.IsFalse)
	c.Check(google.IsNotFound(errors.New("boom")), jc.IsFalse)
}
