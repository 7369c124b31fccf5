package utils

// ResponseCode business response code
type ResponseCode int

// Response codes. 0 is success; 1xxx parameter and auth errors; 2xxx entity
// lookups; 3xxx draw business outcomes; 5xxx system errors.
const (
	CodeSuccess ResponseCode = 0

	CodeInvalidParam ResponseCode = 1001
	CodeUnauthorized ResponseCode = 1002
	CodeForbidden    ResponseCode = 1003

	CodeUserNotFound     ResponseCode = 2001
	CodeActivityNotFound ResponseCode = 2002
	CodePrizeNotFound    ResponseCode = 2003
	CodeUserExists       ResponseCode = 2004

	CodeActivityNotStarted ResponseCode = 3001
	CodeActivityEnded      ResponseCode = 3002
	CodeDrawQuotaExhausted ResponseCode = 3003
	CodeWinQuotaExhausted  ResponseCode = 3004
	CodeNoPrizeAvailable   ResponseCode = 3005

	CodeInternalError ResponseCode = 5000
	CodeEncodingError ResponseCode = 5001
	CodeServiceError  ResponseCode = 5002
)
