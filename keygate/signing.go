package keygate

import "strings"

// buildSigningString reconstructs the canonical signing string the provider
// signed, per draft-cavage-http-signatures:
//
//	(request-target): post /v1/accounts/<id>/licenses/actions/validate-key
//	host: api.keygen.sh
//	date: <Date header>
//	digest: sha-256=<base64>
//
// Pseudo-header names are lowercase, components are newline-delimited in
// the covered-header order, and there is no trailing newline. The digest
// line is omitted when the response carried no Digest header.
func buildSigningString(method, path, host, date, digestHeader string) string {
	var b strings.Builder
	b.WriteString("(request-target): ")
	b.WriteString(strings.ToLower(method))
	b.WriteByte(' ')
	b.WriteString(path)
	b.WriteString("\nhost: ")
	b.WriteString(host)
	b.WriteString("\ndate: ")
	b.WriteString(date)
	if digestHeader != "" {
		b.WriteString("\ndigest: ")
		b.WriteString(digestHeader)
	}
	return b.String()
}
