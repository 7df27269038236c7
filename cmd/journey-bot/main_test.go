package main

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

func TestFormatUser(t *testing.T) {
	tests := []struct {
		user tgmodels.User
		want string
	}{
		{tgmodels.User{ID: 1, FirstName: "Asha"}, "Asha [1]"},
		{tgmodels.User{ID: 2, FirstName: "Ravi", LastName: "Kumar", Username: "ravik"}, "Ravi Kumar @ravik [2]"},
	}
	for _, tt := range tests {
		if got := formatUser(tt.user); got != tt.want {
			t.Errorf("formatUser(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestLogMiddlewareCallsNext(t *testing.T) {
	called := false
	next := func(context.Context, *bot.Bot, *tgmodels.Update) { called = true }

	logMiddleware(next)(context.Background(), nil, &tgmodels.Update{
		CallbackQuery: &tgmodels.CallbackQuery{From: tgmodels.User{ID: 1}, Data: "refresh"},
	})
	if !called {
		t.Fatal("next handler was not called")
	}
}
