package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries employee credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the issued access token and employee identity.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	IssuedAt    time.Time    `json:"issued_at"`
	Employee    EmployeeInfo `json:"employee"`
}

// EmployeeInfo is the public slice of an employee record.
type EmployeeInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// JWTClaims are the claims embedded in employee access tokens.
type JWTClaims struct {
	EmployeeID int64  `json:"employee_id"`
	Email      string `json:"email"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}
