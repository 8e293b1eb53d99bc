// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing detected schemas and spreadsheet rows
// and when exercising the HTTP spreadsheet client end to end. Not intended
// for production usage.
package testutil
