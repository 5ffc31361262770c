package models

import "github.com/golang-jwt/jwt/v5"

// LoginRequest is the body of the admin login endpoint
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Claims are the JWT claims issued to administrators
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RoleAdmin is the only role issued by the service.
const RoleAdmin = "admin"
