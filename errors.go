package lifewatch

import "errors"

// ErrInvalidConfig is returned when configuration fails to parse or
// validate.
var ErrInvalidConfig = errors.New("lifewatch: invalid configuration")
