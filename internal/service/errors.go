package service

import "errors"

// Domain failures returned by AuthService.  Callers match them with
// errors.Is; the wrapped message is safe to show to clients.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidCredentials    = errors.New("incorrect username or password")
	ErrUserNotFound          = errors.New("there is no user with that username")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrUnauthenticated       = errors.New("you are not logged in, please log in to get access")
	ErrStalePasswordToken    = errors.New("user recently changed password, please log in again")
	ErrDispatchFailure       = errors.New("there was an error sending the email, try again later")
)
