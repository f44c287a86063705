//go:build !unix

package platform

func machine() string { return "" }
