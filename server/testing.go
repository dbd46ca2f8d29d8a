/*
	This file contains functions useful for testing against the server in other packages.
	Due to the way Go handles compilation of *_test.go files, these functions cannot be in
	a _test.go file since they would be unavailable to test files in external packages.
	So these functions are exported and contain the "Test" keyword.
*/

package server

import (
	"context"
	"testing"

	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// Test users.  root is the only admin.
const (
	TestAdminName = "root"
	TestUserName  = "alice"
	TestOtherName = "bob"

	TestAdminID int64 = 0
	TestUserID  int64 = 2
	TestOtherID int64 = 3

	TestPassword = "omero"
)

// TestConfig returns a server configuration with an in-memory store and bucket.
func TestConfig() *ome.ServerConfig {
	return &ome.ServerConfig{
		BlobURL:   "mem://",
		SecretKey: "test-secret",
		Users: []ome.UserConfig{
			{ID: TestAdminID, Name: TestAdminName, FirstName: "Root", LastName: "Admin", Password: TestPassword, Admin: true},
			{ID: TestUserID, Name: TestUserName, FirstName: "Alice", LastName: "Liddell", Password: TestPassword, Group: 3},
			{ID: TestOtherID, Name: TestOtherName, FirstName: "Bob", LastName: "Builder", Password: TestPassword, Group: 3},
		},
	}
}

// OpenTest returns an in-memory server that is closed when the test ends.
func OpenTest(t *testing.T) *Service {
	return OpenTestConfig(t, TestConfig())
}

// OpenTestConfig is like OpenTest with a custom configuration.
func OpenTestConfig(t *testing.T, c *ome.ServerConfig) *Service {
	svc, err := Open(context.Background(), c, ome.DiscardLogger())
	if err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// TestSession logs a test user in and returns an in-process session.
func TestSession(t *testing.T, svc *Service, user string) service.Session {
	token, err := svc.Login(context.Background(), user, TestPassword)
	if err != nil {
		t.Fatalf("can't log in %q: %v\n", user, err)
	}
	sess, err := svc.Join(token)
	if err != nil {
		t.Fatalf("can't join session of %q: %v\n", user, err)
	}
	return sess
}
