//go:build !unix

package pkgmgr

// effectiveUID reports root on systems without a uid model so that no
// sudo prefix is added.
var effectiveUID = func() int { return 0 }
