package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Reason codes carried in the "reason" field of failed responses.
const (
	ReasonExpiredToken          = "ExpiredToken"
	ReasonInvalidRequestType    = "InvalidRequestType"
	ReasonAccessDenied          = "AccessDenied"
	ReasonInvalidLogin          = "InvalidLogin"
	ReasonNoSuchProduct         = "NoSuchProduct"
	ReasonNoSuchProductItem     = "NoSuchProductItem"
	ReasonNoSuchLoan            = "NoSuchLoan"
	ReasonNoSuchProductCategory = "NoSuchProductCategory"
	ReasonNoSuchUser            = "NoSuchUser"
	ReasonAlreadyExists         = "AlreadyExists"
	ReasonInvalidPassword       = "InvalidPassword"
	ReasonInvalidUsername       = "InvalidUsername"
	ReasonCannotDelete          = "CannotDelete"
	ReasonMissingArguments      = "MissingArguments"
	ReasonMalformedRequest      = "MalformedRequest"
	ReasonServerError           = "ServerError"
	ReasonInvalidArguments      = "InvalidArguments"
	ReasonNoItemsForProduct     = "NoItemsForProduct"
	ReasonReservationFailed     = "ReservationFailed"
	ReasonLoanResizeFailed      = "LoanResizeFailed"
	ReasonLoanAlreadyStarted    = "LoanAlreadyStarted"
)

// DatabaseConnectionError is the message sent when a worker lost its database.
const DatabaseConnectionError = "DatabaseConnectionError"

// Response is the envelope of every answer. A nil Reason means success.
type Response struct {
	Reason       *string `json:"reason"`
	Message      string  `json:"message,omitempty"`
	Amount       *int    `json:"amount,omitempty"`
	ResponseData any     `json:"responseData,omitempty"`
}

// OK creates a successful response with optional data.
func OK(data any) *Response {
	return &Response{ResponseData: data}
}

// Fail creates a response with the given reason and optional message.
func Fail(reason, message string) *Response {
	return &Response{Reason: &reason, Message: message}
}

// Success reports whether the response carries no reason.
func (r *Response) Success() bool { return r.Reason == nil }

// ReasonString returns the reason, or "" on success.
func (r *Response) ReasonString() string {
	if r.Reason == nil {
		return ""
	}
	return *r.Reason
}

// SendJSON writes the response with the given status code.
func (r *Response) SendJSON(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(r)
}

// Send writes the response with status 200.
func (r *Response) Send(w http.ResponseWriter) { r.SendJSON(w, http.StatusOK) }

// Templates

func ExpiredToken() *Response                    { return Fail(ReasonExpiredToken, "") }
func InvalidRequestType(msg string) *Response    { return Fail(ReasonInvalidRequestType, msg) }
func AccessDenied() *Response                    { return Fail(ReasonAccessDenied, "") }
func InvalidLogin() *Response                    { return Fail(ReasonInvalidLogin, "") }
func NoSuchProduct(msg string) *Response         { return Fail(ReasonNoSuchProduct, msg) }
func NoSuchProductItem(msg string) *Response     { return Fail(ReasonNoSuchProductItem, msg) }
func NoSuchLoan(msg string) *Response            { return Fail(ReasonNoSuchLoan, msg) }
func NoSuchProductCategory(msg string) *Response { return Fail(ReasonNoSuchProductCategory, msg) }
func NoSuchUser(msg string) *Response            { return Fail(ReasonNoSuchUser, msg) }
func AlreadyExists(msg string) *Response         { return Fail(ReasonAlreadyExists, msg) }
func InvalidPassword() *Response                 { return Fail(ReasonInvalidPassword, "") }
func InvalidUsername() *Response                 { return Fail(ReasonInvalidUsername, "") }
func CannotDelete(msg string) *Response          { return Fail(ReasonCannotDelete, msg) }
func MalformedRequest(msg string) *Response      { return Fail(ReasonMalformedRequest, msg) }
func ServerError(msg string) *Response           { return Fail(ReasonServerError, msg) }
func NoItemsForProduct(msg string) *Response     { return Fail(ReasonNoItemsForProduct, msg) }
func ReservationFailed(msg string) *Response     { return Fail(ReasonReservationFailed, msg) }
func LoanAlreadyStarted(msg string) *Response    { return Fail(ReasonLoanAlreadyStarted, msg) }

// MissingArguments names the required arguments that were absent or had the
// wrong type.
func MissingArguments(args ...string) *Response {
	return Fail(ReasonMissingArguments, strings.Join(args, ", "))
}

// InvalidArguments names the arguments whose values were rejected.
func InvalidArguments(args ...string) *Response {
	return Fail(ReasonInvalidArguments, strings.Join(args, ", "))
}

// LoanResizeFailed optionally reports how many loans were in the way.
func LoanResizeFailed(msg string, conflicts int) *Response {
	r := Fail(ReasonLoanResizeFailed, msg)
	if conflicts > 0 {
		r.Amount = &conflicts
	}
	return r
}
