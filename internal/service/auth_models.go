package service

import "github.com/musayazlik/postify/internal/entity"

type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Meta     RequestMeta
}

type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

type ResetPasswordInput struct {
	Email    string
	Code     string
	Password string
	Meta     RequestMeta
}

type AuthResult struct {
	Token string
	User  *entity.User
}
