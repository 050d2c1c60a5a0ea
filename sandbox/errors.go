package sandbox

import "errors"

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrEmptyCommand        = errors.New("empty command")
	ErrContainerNotFound   = errors.New("container not found")
	ErrContainerExists     = errors.New("container already exists")
	ErrImagePull           = errors.New("image pull failed")
	ErrEngine              = errors.New("container engine error")
	ErrExecCreate          = errors.New("exec creation failed")
	ErrExecAttach          = errors.New("exec stream attachment failed")
	ErrMissingProjectFile  = errors.New("missing project file")
	ErrUnknownEnvironment  = errors.New("unknown execution environment")
)
