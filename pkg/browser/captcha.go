package browser

// captchaSelectors are the DOM markers that indicate a CAPTCHA challenge.
// The list covers generic captcha class/id naming, reCAPTCHA, hCaptcha,
// and Cloudflare Turnstile.
var captchaSelectors = []string{
	`[class*="captcha"]`,
	`[id*="captcha"]`,
	`[class*="recaptcha"]`,
	`[id*="recaptcha"]`,
	`iframe[src*="recaptcha"]`,
	`[class*="h-captcha"]`,
	`iframe[src*="hcaptcha"]`,
	`[class*="cf-turnstile"]`,
}

// DetectCaptcha probes the current page for CAPTCHA markers. It returns
// the first matching selector so the caller can record which marker fired.
func DetectCaptcha(d Driver) (bool, string, error) {
	for _, selector := range captchaSelectors {
		found, err := d.Exists(selector)
		if err != nil {
			return false, "", err
		}
		if found {
			return true, selector, nil
		}
	}
	return false, "", nil
}
