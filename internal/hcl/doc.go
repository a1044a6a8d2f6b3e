// Package hcl implements the HCL-backed manifest loader. It parses
// manifest files into the raw schema structures, translates them into the
// format-agnostic config model and validates the result.
package hcl
