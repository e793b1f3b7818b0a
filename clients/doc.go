/*
Package clients provides a client for a running sign-in server.

SignInClient covers what an operator or a kiosk script needs without a browser:

  - Status - query the readiness probe
  - Drain / Undrain - take the server out of, or back into, load balancer rotation
  - Submit - post a sign-in form and read back the message shown to the attendee

# Example Usage

	client := clients.NewSignInClient("http://127.0.0.1:8080", 10*time.Second)

	msg, err := client.Submit(ctx, interfaces.SignInForm{
	    Secret: "H4CK1T",
	    Major:  "CS",
	    Name:   "Dave",
	    Email:  "dave@mst.edu",
	})
*/
package clients
