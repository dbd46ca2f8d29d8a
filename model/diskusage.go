package model

// DiskUsageRequest scopes a disk usage computation either to explicit objects or to
// every object of the given classes.
type DiskUsageRequest struct {
	Objects map[Class][]int64
	Classes []Class
}

// UserGroup keys disk usage totals.
type UserGroup struct {
	UserID  int64
	GroupID int64
}

// DiskUsageResponse is the result of a successful disk usage computation.
type DiskUsageResponse struct {
	TotalBytesUsed map[UserGroup]int64
	TotalFileCount map[UserGroup]int
}

// ErrorResponse is returned instead of a result when the server fails the request.
// The message is found under the "message" parameter.
type ErrorResponse struct {
	Category   string
	Name       string
	Parameters map[string]string
}

// HandleResult is either a DiskUsageResponse or an ErrorResponse.
type HandleResult struct {
	Usage *DiskUsageResponse
	Error *ErrorResponse
}

// HandleStatus reports progress of an asynchronous request.
type HandleStatus struct {
	Done        bool
	Steps       int
	CurrentStep int
}
