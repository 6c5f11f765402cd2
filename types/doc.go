// Package types provides core types used across the scriptflow module.
// This package has ZERO dependencies on other scriptflow packages to avoid
// circular imports. All other packages should import types from here.
package types
