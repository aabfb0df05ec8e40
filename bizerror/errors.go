package bizerror

import (
	"errors"
	"fmt"
	"net/http"
	"roster/common"
)

// error kinds, every specific error below matches exactly one of them with errors.Is
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamFailure = errors.New("upstream failure")
)

var (
	ErrInvalidProject = &ErrInvalid{Code: "membership.invalid_project", Message: "project not found in this organization"}
	ErrInvalidMember  = &ErrInvalid{Code: "membership.invalid_member", Message: "member not found in this organization"}
	ErrInvalidEmail   = &ErrInvalid{Code: "invitation.invalid_email", Message: "email is empty or malformed"}
	ErrInvalidRole    = &ErrInvalid{Code: "member.invalid_role", Message: "unknown role"}
	ErrNegativeRate   = &ErrInvalid{Code: "member.negative_rate", Message: "hourly rate must not be negative"}
	ErrInvalidManager = &ErrInvalid{Code: "member.invalid_manager", Message: "manager must be an admin or manager of the same organization"}
	ErrInvalidWeek    = &ErrInvalid{Code: "project.invalid_week_start", Message: "week start must be sunday or monday"}

	ErrSelfRoleLockout    = &ErrConflictDetail{Code: "member.self_role_lockout", Message: "admins can not change their own role"}
	ErrSelfCancel         = &ErrConflictDetail{Code: "invitation.self_cancel", Message: "admins can not cancel their own account"}
	ErrMemberInOtherOrg   = &ErrConflictDetail{Code: "invitation.member_in_other_org", Message: "account already belongs to another organization"}
	ErrInvitationAccepted = &ErrConflictDetail{Code: "invitation.already_accepted", Message: "invitation is already accepted"}
	ErrManagerHasReports  = &ErrConflictDetail{Code: "member.has_reports", Message: "member still manages contractors"}
)

// ErrInvalid is a rejected input. Instances with the same code are equal under errors.Is.
type ErrInvalid struct {
	Code    string
	Message string
	Data    interface{}
}

func (e *ErrInvalid) Error() string {
	return e.Message
}

func (e *ErrInvalid) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	t, ok := target.(*ErrInvalid)
	return ok && t.Code == e.Code
}

func (e *ErrInvalid) WithData(data interface{}) *ErrInvalid {
	return &ErrInvalid{Code: e.Code, Message: e.Message, Data: data}
}

func (e *ErrInvalid) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusBadRequest, Code: e.Code, Message: e.Message, Data: e.Data}
}

type ErrConflictDetail struct {
	Code    string
	Message string
}

func (e *ErrConflictDetail) Error() string {
	return e.Message
}

func (e *ErrConflictDetail) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	t, ok := target.(*ErrConflictDetail)
	return ok && t.Code == e.Code
}

func (e *ErrConflictDetail) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusConflict, Code: e.Code, Message: e.Message}
}

// ErrFieldForbidden is returned when a viewer tries to change a field it may not edit.
type ErrFieldForbidden struct {
	Field string
}

func (e *ErrFieldForbidden) Error() string {
	return fmt.Sprintf("field '%s' is not editable by the current viewer", e.Field)
}

func (e *ErrFieldForbidden) Is(target error) bool {
	return target == ErrForbidden
}

func (e *ErrFieldForbidden) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusForbidden, Code: "security.field_forbidden",
		Message: e.Error(), Data: e.Field}
}

// ErrUpstream wraps a failed call to the identity provider or the directory store.
type ErrUpstream struct {
	Source string
	Cause  error
}

func Upstream(source string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ErrUpstream{Source: source, Cause: cause}
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Cause)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Cause
}

func (e *ErrUpstream) Is(target error) bool {
	return target == ErrUpstreamFailure
}

func (e *ErrUpstream) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusBadGateway, Code: "common.upstream_failure",
		Message: e.Error(), Data: e.Source}
}
