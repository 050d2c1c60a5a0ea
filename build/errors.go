package build

import "errors"

var (
	ErrNoExitStatus = errors.New("command finished without an observable exit status")
	ErrCache        = errors.New("result cache error")
)
