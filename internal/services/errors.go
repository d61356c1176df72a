package services

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("forbidden")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAlreadyExists        = errors.New("username or email already exists")
	ErrAlreadyMember        = errors.New("user is already a member of this group")
	ErrNotAMember           = errors.New("user is not a member of this conversation")
	ErrLastAdmin            = errors.New("cannot remove the last admin")
	ErrSelfChat             = errors.New("cannot create a chat with yourself")
	ErrNotAGroup            = errors.New("conversation is not a group")
	ErrInternal             = errors.New("internal error")
)
