package models

import "errors"

var (
	ErrVehicleNotFound         = errors.New("vehicle not found")
	ErrVehicleExists           = errors.New("vehicle already exists")
	ErrMaintenanceKindNotFound = errors.New("maintenance kind not found")
	ErrEventNotFound           = errors.New("maintenance event not found")
	ErrOdometerRegression      = errors.New("odometer cannot decrease")
	ErrInvalidInterval         = errors.New("maintenance kind interval must be positive")
	ErrInvalidInput            = errors.New("invalid input")
	ErrUserNotFound            = errors.New("user not found")
)
