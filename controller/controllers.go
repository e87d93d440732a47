// controller/controllers.go
package controller

import "github.com/dev-mohitbeniwal/bouncer/service"

type Controllers struct {
	Bouncer *BouncerController
	Admin   *AdminController
}

func InitializeControllers(bouncerService service.IBouncerService) *Controllers {
	return &Controllers{
		Bouncer: NewBouncerController(bouncerService),
		Admin:   NewAdminController(bouncerService),
	}
}
