package flow

import "errors"

// AuthError reports a failed login: bad credentials or an unreachable site
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return "login failed: " + e.Err.Error()
	}
	return "login failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed list, status or selection call
type FetchError struct {
	Op  string // e.g. "list shots"
	Err error
}

func (e *FetchError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// PublishError reports a publish the remote service rejected
type PublishError struct {
	Reason string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return "publish failed: " + e.Err.Error()
	}
	return "publish failed: " + e.Reason
}

func (e *PublishError) Unwrap() error { return e.Err }

// errNotSuccessful is used when the service reports failure without a reason
var errNotSuccessful = errors.New("request was not successful")

// remoteError converts an unsuccessful envelope into an error
func remoteError(env Envelope) error {
	if env.Error != "" {
		return errors.New(env.Error)
	}
	return errNotSuccessful
}
