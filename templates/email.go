package templates

import "fmt"

// PasswordResetEmail renders the html body for the password reset email.
func PasswordResetEmail(name, resetLink string) string {
	return fmt.Sprintf(`
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Password Reset Requested</h2>
    <p>Hi %s,</p>
    <p>We received a request to reset the password on your account. Click the
    button below to choose a new one. The link expires in one hour.</p>
    <p>
      <a href="%s" style="background-color: #1a73e8; color: #fff; padding: 10px 18px; text-decoration: none; border-radius: 4px;">Reset Password</a>
    </p>
    <p>If you did not ask for this, you can safely ignore this email.</p>
    <p>The Civic Report Team</p>
  </body>
</html>`, name, resetLink)
}

// OfficerWelcomeEmail renders the html body sent to newly provisioned officers.
func OfficerWelcomeEmail(name, email, tempPassword, loginLink string) string {
	return fmt.Sprintf(`
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Welcome Aboard</h2>
    <p>Hi %s,</p>
    <p>An administrator created an officer account for you.</p>
    <p>
      Email: <strong>%s</strong><br/>
      Temporary password: <strong>%s</strong>
    </p>
    <p>Please sign in and change your password right away.</p>
    <p>
      <a href="%s" style="background-color: #1a73e8; color: #fff; padding: 10px 18px; text-decoration: none; border-radius: 4px;">Sign In</a>
    </p>
    <p>The Civic Report Team</p>
  </body>
</html>`, name, email, tempPassword, loginLink)
}
