// Command idpserver runs the fake identity provider for local testing.
//
// It serves the same sign-in, signup, password management and logout
// endpoints the real target exposes, pre-provisioned with the standard
// account pool, so stampede can be exercised without a staging deployment.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stampede/idptest"
	"stampede/internal/data"
)

func main() {
	port := flag.Int("port", 3000, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	users := flag.Int("users", 100, "size of the provisioned account pool")
	neverIssueOTP := flag.Bool("never-issue-otp", false, "simulate a broken SMS provider (sign-in never reaches the OTP page)")
	hideSignOut := flag.Bool("hide-signout", false, "render the account page without a sign-out link")
	authUser := flag.String("auth-user", "", "require HTTP basic auth on signup endpoints")
	authPass := flag.String("auth-pass", "", "basic auth password for signup endpoints")
	flag.Parse()

	server := idptest.NewServer(idptest.Options{
		NeverIssueOTP:   *neverIssueOTP,
		HideSignOutLink: *hideSignOut,
		BasicAuthUser:   *authUser,
		BasicAuthPass:   *authPass,
	})

	for i := 1; i < *users; i++ {
		server.Register(fmt.Sprintf("testuser%d@example.com", i), data.DefaultPassword)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("Stampede Fake IdP")
	fmt.Println("======================")
	fmt.Printf("Listening on http://%s\n", addr)
	fmt.Printf("Provisioned accounts: testuser1..testuser%d@example.com\n\n", *users-1)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /                       - Landing page (sign-in form or account links)")
	fmt.Println("  POST /sign_in                - Credential submission")
	fmt.Println("  POST /login/two_factor/sms   - OTP confirmation")
	fmt.Println("  GET  /account                - Account page")
	fmt.Println("  GET  /manage/password        - Password change form")
	fmt.Println("  GET  /sign_up/enter_email    - Signup entry")
	fmt.Println("  GET  /api/saml/logout        - Session teardown")
	fmt.Println("  GET  /api/health             - Health check")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		os.Exit(0)
	}()

	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}
