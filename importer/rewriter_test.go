package importer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

func TestRewriterRewritesProduct(t *testing.T) {
	require := require.New(t)

	cr, err := NewCompiledRewriter(vulnsync.Rewriter{
		Predicate:   `vendor == "gnu" && product == "glibc"`,
		RewriteRule: `"libc6"`,
	})
	require.NoError(err)

	name := "cpe:2.3:a:gnu:glibc:2.38:*:*:*:*:*:*:*"
	require.Equal("cpe:2.3:a:gnu:libc6:2.38:*:*:*:*:*:*:*", cr.Rewrite(name))
}

func TestRewriterLeavesNonMatchingNames(t *testing.T) {
	require := require.New(t)

	cr, err := NewCompiledRewriter(vulnsync.Rewriter{
		Predicate:   `vendor == "gnu"`,
		RewriteRule: `"renamed"`,
	})
	require.NoError(err)

	name := "cpe:2.3:a:redhat:openshift:4.1:*:*:*:*:*:*:*"
	require.Equal(name, cr.Rewrite(name))
}

func TestRewriterVendorField(t *testing.T) {
	require := require.New(t)

	cr, err := NewCompiledRewriter(vulnsync.Rewriter{
		Field:       "vendor",
		Predicate:   `vendor == "oldcorp"`,
		RewriteRule: `fmt(vendor, "acquired-%s")`,
	})
	require.NoError(err)

	name := "cpe:2.3:a:oldcorp:widget:1.0:*:*:*:*:*:*:*"
	require.Equal("cpe:2.3:a:acquired-oldcorp:widget:1.0:*:*:*:*:*:*:*", cr.Rewrite(name))
}

func TestRewriterIgnoresMalformedNames(t *testing.T) {
	require := require.New(t)

	cr, err := NewCompiledRewriter(vulnsync.Rewriter{
		Predicate:   `true`,
		RewriteRule: `"changed"`,
	})
	require.NoError(err)

	require.Equal("not-a-cpe-name", cr.Rewrite("not-a-cpe-name"))
}

func TestRewriterRejectsBadPredicate(t *testing.T) {
	_, err := NewCompiledRewriter(vulnsync.Rewriter{
		Predicate:   `vendor ==`,
		RewriteRule: `"x"`,
	})
	require.Error(t, err)
}
