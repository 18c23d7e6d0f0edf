package auth

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role    Role
		granted []Permission
		denied  []Permission
	}{
		{
			role:    RoleOwner,
			granted: []Permission{PermTimelineRead, PermActionExecute, PermTimelineOperate, PermTimelineAdmin, PermAuditRead},
		},
		{
			role:    RoleCoordinator,
			granted: []Permission{PermTimelineRead, PermActionExecute, PermTimelineOperate},
			denied:  []Permission{PermTimelineAdmin, PermAuditRead},
		},
		{
			role:    RoleParticipant,
			granted: []Permission{PermTimelineRead, PermActionExecute},
			denied:  []Permission{PermTimelineOperate, PermTimelineAdmin, PermAuditRead},
		},
		{
			role:    RoleViewOnly,
			granted: []Permission{PermTimelineRead},
			denied:  []Permission{PermActionExecute, PermTimelineOperate, PermTimelineAdmin, PermAuditRead},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for _, perm := range tt.granted {
				if !HasPermission(tt.role, perm) {
					t.Errorf("%s should have %s", tt.role, perm)
				}
			}
			for _, perm := range tt.denied {
				if HasPermission(tt.role, perm) {
					t.Errorf("%s should NOT have %s", tt.role, perm)
				}
			}
		})
	}
}

func TestHasPermission_UnknownRole(t *testing.T) {
	if HasPermission("ghost", PermTimelineRead) {
		t.Error("unknown role should have no permissions")
	}
	if PermissionsForRole("ghost") != nil {
		t.Error("PermissionsForRole(unknown) should be nil")
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleViewOnly)
	perms[0] = PermAuditRead

	if HasPermission(RoleViewOnly, PermAuditRead) {
		t.Error("mutating the returned slice changed the role mapping")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"OWNER", RoleOwner, false},
		{"coordinator", RoleCoordinator, false},
		{" View_Only ", RoleViewOnly, false},
		{"admin", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidRole) {
			t.Errorf("ParseRole(%q) error = %v, want ErrInvalidRole", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
