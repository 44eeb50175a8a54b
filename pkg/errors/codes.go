package errors

import "net/http"

// Business rule codes. Clients match on these strings, so they never change spelling.
const (
	CodeSpotDisabled             = "ParkingSpot.Disabled"
	CodeSpotInvalidBooking       = "ParkingSpot.InvalidBooking"
	CodeSpotNoAvailability       = "ParkingSpot.NoAvailability"
	CodeSpotBookingNotFound      = "ParkingSpot.BookingNotFound"
	CodeSpotAvailabilityNotFound = "ParkingSpot.AvailabilityNotFound"
	CodeSpotInvalidCancelling    = "ParkingSpot.InvalidCancelling"
	CodeSpotInvalidRating        = "ParkingSpot.InvalidRating"
	CodeSpotInvalidEditing       = "ParkingSpot.InvalidEditing"
	CodeSpotInvalidDeletion      = "ParkingSpot.InvalidDeletion"
	CodeBookingInvalid           = "ParkingSpotBooking.Invalid"

	CodeParkingInvalidEditing  = "Parking.InvalidEditing"
	CodeParkingInvalidDeletion = "Parking.InvalidDeletion"
	CodeParkingInvalidTransfer = "Parking.InvalidTransfer"
	CodeParkingFull            = "Parking.Full"
	CodeParkingNotResident     = "Parking.NotResident"
	CodeParkingAlreadyResident = "Parking.AlreadyResident"
	CodeParkingInvalidLeave    = "Parking.InvalidLeave"

	CodeRequestInvalid           = "ParkingBookingRequest.Invalid"
	CodeRequestNotFound          = "ParkingBookingRequest.NotFound"
	CodeRequestInvalidAccept     = "ParkingBookingRequest.InvalidAccept"
	CodeRequestAlreadyAccepted   = "ParkingBookingRequest.AlreadyAccepted"
	CodeRequestInvalidCancelling = "ParkingBookingRequest.InvalidCancelling"

	CodeWalletTransactionConflict = "Wallet.TransactionConflict"
	CodeWalletTransactionNotFound = "Wallet.TransactionNotFound"
)

var businessStatus = map[string]int{
	CodeSpotBookingNotFound:       http.StatusNotFound,
	CodeSpotAvailabilityNotFound:  http.StatusNotFound,
	CodeRequestNotFound:           http.StatusNotFound,
	CodeWalletTransactionNotFound: http.StatusNotFound,

	CodeSpotNoAvailability:        http.StatusConflict,
	CodeParkingFull:               http.StatusConflict,
	CodeParkingAlreadyResident:    http.StatusConflict,
	CodeRequestAlreadyAccepted:    http.StatusConflict,
	CodeWalletTransactionConflict: http.StatusConflict,

	CodeSpotInvalidEditing:     http.StatusForbidden,
	CodeSpotInvalidDeletion:    http.StatusForbidden,
	CodeParkingInvalidEditing:  http.StatusForbidden,
	CodeParkingInvalidDeletion: http.StatusForbidden,
	CodeParkingNotResident:     http.StatusForbidden,
}

// Business builds a domain-rule violation. Codes without an explicit mapping answer 422.
func Business(code, message string) *AppError {
	status, ok := businessStatus[code]
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Kind:       KindBusiness,
	}
}
