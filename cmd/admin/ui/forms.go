package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/redmonkez12/nonprofit-portal/cmd/admin/account"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
)

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func roleSelect(value *string) *huh.Select[string] {
	return huh.NewSelect[string]().
		Title("Role").
		Options(
			huh.NewOption("User", string(user.RoleUser)),
			huh.NewOption("Admin", string(user.RoleAdmin)),
			huh.NewOption("Super admin", string(user.RoleSuperAdmin)),
		).
		Value(value)
}

// RunAccountForm asks for whatever in is missing. Fields passed as flags are
// left alone.
func RunAccountForm(in *account.Input) error {
	var fields []huh.Field

	if in.Email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("admin@example.org").
			Value(&in.Email).
			Validate(required("email")))
	}
	if in.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&in.Username).
			Validate(required("username")))
	}
	if in.Name == "" {
		fields = append(fields, huh.NewInput().
			Title("Full name").
			Value(&in.Name).
			Validate(required("name")))
	}
	if in.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			Description("At least 8 characters").
			EchoMode(huh.EchoModePassword).
			Value(&in.Password).
			Validate(required("password")))
	}
	if in.Role == "" {
		in.Role = string(user.RoleAdmin)
		fields = append(fields, roleSelect(&in.Role))
	}

	if len(fields) == 0 {
		return nil
	}

	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCatppuccin()).Run()
}

// RunRoleForm asks for the account and role to change.
func RunRoleForm(email, role *string) error {
	var fields []huh.Field

	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(required("email")))
	}
	if *role == "" {
		fields = append(fields, roleSelect(role))
	}

	if len(fields) == 0 {
		return nil
	}

	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCatppuccin()).Run()
}

// PrintAccount prints the stored account.
func PrintAccount(title string, u *user.User) {
	fmt.Println(successStyle.Render(title))
	fmt.Println()
	fmt.Println(labelStyle.Render("ID") + u.ID.String())
	fmt.Println(labelStyle.Render("Email") + u.Email)
	fmt.Println(labelStyle.Render("Username") + u.Username)
	fmt.Println(labelStyle.Render("Role") + string(u.Role))
	fmt.Println()
}

// PrintTitle prints a heading.
func PrintTitle(msg string) {
	fmt.Println(titleStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Println(errorStyle.Render("Error: " + msg))
}
