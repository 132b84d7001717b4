// Package protocol defines the API request/response types.
package protocol

// LoginRequest is the body for POST /api/user/Login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/user/Login.
type LoginResponse struct {
	ID          int64  `json:"id"`
	AccessToken string `json:"accessToken"`
	UserType    string `json:"userType"`
	Username    string `json:"username"`
}

// Student is the student record nested in a user.
type Student struct {
	FullName         string `json:"fullName"`
	NameWithInitials string `json:"nameWithInitials,omitempty"`
	Email            string `json:"email,omitempty"`
}

// UserResponse is returned by GET and PATCH /api/user/{userId}.
type UserResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	UserType string   `json:"userType,omitempty"`
	Student  *Student `json:"student"`
}

// UserPatch is the body for PATCH /api/user/{userId}. Nil fields are
// omitted so profile and password updates stay independent.
type UserPatch struct {
	Password *string  `json:"password,omitempty"`
	Student  *Student `json:"student,omitempty"`
}
