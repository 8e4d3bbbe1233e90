package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"admin role", RoleAdmin, true},
		{"manager role", RoleManager, true},
		{"operator role", RoleOperator, true},
		{"viewer role", RoleViewer, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestRole_HasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		action   string
		expected bool
	}{
		{"admin can manage users", RoleAdmin, ActionManageUsers, true},
		{"admin can register vehicle", RoleAdmin, ActionRegisterVehicle, true},

		{"manager cannot manage users", RoleManager, ActionManageUsers, false},
		{"manager can register vehicle", RoleManager, ActionRegisterVehicle, true},
		{"manager can record maintenance", RoleManager, ActionRecordMaintenance, true},

		{"operator can update odometer", RoleOperator, ActionUpdateOdometer, true},
		{"operator can record maintenance", RoleOperator, ActionRecordMaintenance, true},
		{"operator can view alerts", RoleOperator, ActionViewAlerts, true},
		{"operator cannot register vehicle", RoleOperator, ActionRegisterVehicle, false},
		{"operator cannot manage users", RoleOperator, ActionManageUsers, false},

		{"viewer can view vehicles", RoleViewer, ActionViewVehicles, true},
		{"viewer can view maintenance", RoleViewer, ActionViewMaintenance, true},
		{"viewer can view alerts", RoleViewer, ActionViewAlerts, true},
		{"viewer cannot update odometer", RoleViewer, ActionUpdateOdometer, false},
		{"viewer cannot record maintenance", RoleViewer, ActionRecordMaintenance, false},

		{"unknown role has nothing", Role("guest"), ActionViewAlerts, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.role.HasPermission(tt.action)
			if result != tt.expected {
				t.Errorf("Role %s HasPermission(%s) = %v, want %v",
					tt.role, tt.action, result, tt.expected)
			}
		})
	}
}
