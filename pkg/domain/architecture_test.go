package domain

import (
	"testing"

	"idfcore/testutil"
)

// The shared vocabulary must stay importable by every layer.
func TestDomainImportsOnlyStdlibAndUUID(t *testing.T) {
	testutil.AssertNoImports(t, ".", "domain depends on the standard library and uuid only",
		testutil.InternalImport,
		testutil.ThirdParty("github.com/google/uuid"),
	)
}
