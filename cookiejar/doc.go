// Package cookiejar provides an http.CookieJar that survives restarts.
//
// Cookie matching is delegated to net/http/cookiejar with the public suffix
// list from golang.org/x/net. Accepted cookies are also tracked so that Save
// can write them to disk in the Netscape cookie file format, the same format
// curl uses for its cookie jar. Open loads such a file back.
//
//	jar, err := cookiejar.Open("temp/cookies.txt")
//	client := &http.Client{Jar: jar}
//	...
//	err = jar.Save()
package cookiejar
