// Package mocks provides scriptable fakes for the provider client used in tests.
package mocks
