package render

const htmlSource = `
{{define "submit"}}<h2>Record Submission Result</h2>
<p><strong>Status:</strong> {{.RecordStatus}}</p>
<p><strong>Sequence:</strong> {{.Sequence}}</p>
<p><strong>View:</strong> {{.View}}</p>
<h3>Pre-Prepare</h3>
<p><strong>Sender:</strong> {{.PrePrepare.Sender}}</p>
<p><strong>Record:</strong> {{.PrePrepare.Record}}</p>
<p><strong>Signature:</strong> {{.PrePrepare.Signature}}</p>
<h3>Prepare Messages ({{len .Prepares}})</h3>
<ul>{{range .Prepares}}
<li><strong>{{.Sender}}</strong>: {{.Signature}}</li>{{end}}
</ul>
<h3>Commit Messages ({{len .Commits}})</h3>
<ul>{{range .Commits}}
<li><strong>{{.Sender}}</strong>: {{.Signature}}</li>{{end}}
</ul>
<h3>Final Consensus</h3>
<p><strong>Consensus Reached:</strong> {{.PreparesCount}} prepares, {{.CommitsCount}} commits</p>
<p><strong>Primary Node:</strong> {{yesno .IsPrimary}}</p>
{{if .Committed}}<p class="success">{{banner}}</p>
{{else}}<p class="pending">Waiting for commit</p>
{{end}}{{end}}

{{define "status"}}<p><strong>Sequence {{.Sequence}}</strong> (view {{.View}}): {{.State}}</p>
{{if .ViewMismatch}}<p class="pending">Ordered in view {{.RecordView}}</p>
{{end}}<p>{{.Prepares}}/{{.RequiredPrepares}} prepares, {{.Commits}}/{{.RequiredCommits}} commits</p>
{{end}}

{{define "system"}}<h2>Cluster</h2>
<p>{{.TotalNodes}} nodes, threshold {{.ConsensusThreshold}}, tolerates {{.MaxFaulty}} faulty</p>
<p>{{.RecordsStored}} records, global sequence {{.GlobalSequenceNumber}}, {{.Pending}} pending</p>
<table>
<tr><th>Node</th><th>View</th><th>Seq</th><th>Primary</th><th>Faulty</th><th>Records</th></tr>{{range .Nodes}}
<tr><td>{{.Name}}</td><td>{{.View}}</td><td>{{.Seq}}</td><td>{{yesno .Primary}}</td><td>{{yesno .Faulty}}</td><td>{{.Records}}</td></tr>{{end}}
</table>
{{end}}

{{define "viewchange"}}<p class="success">{{.Status}}: view {{.NewView}}, primary {{.Primary}} (was {{.OldPrimary}})</p>
<p>{{len .CheckpointMessages}} checkpoint messages</p>
{{end}}

{{define "query"}}{{range .}}<h3>Node {{.NodeQueried}}: {{.Count}} result(s){{if .ItemID}} for {{.ItemID}}{{end}}</h3>
{{if .Results}}<table>
<tr><th>Node</th><th>Item</th><th>Quantity</th><th>Price</th><th>Status</th><th>Signature</th></tr>{{range .Results}}
<tr><td>{{.NodeID}}</td><td>{{.ItemID}}</td><td>{{optional .Quantity}}</td><td>{{optional .Price}}</td><td>{{.Status}}</td><td>{{.Signature}}</td></tr>{{end}}
</table>
{{else}}<p>No matching records</p>
{{end}}{{end}}{{end}}

{{define "nodeinfo"}}<h2>PKG Parameters</h2>
<p><strong>n:</strong> {{.PKG.N}}</p>
<p><strong>e:</strong> {{.PKG.E}}</p>
<h2>Nodes</h2>
<table>
<tr><th>Node</th><th>Identity</th><th>Random value</th><th>Secret key</th></tr>{{range .Rows}}
<tr><td>{{.ID}}</td><td>{{.Identity}}</td><td>{{.RandomVal}}</td><td>{{.SecretKey}}</td></tr>{{end}}
</table>
{{end}}

{{define "multisign"}}<h2>Multi-signature on "{{.Message}}"</h2>
<p><strong>Signers:</strong> {{range $i, $s := .Signers}}{{if $i}}, {{end}}{{$s}}{{end}}</p>
<p><strong>t:</strong> {{.T}}</p>
<p><strong>h:</strong> {{.Challenge}}</p>
<p><strong>s:</strong> {{.Signature}}</p>
<ul>{{range .Partials}}
<li><strong>{{.Node}}</strong> (ID {{.Identity}}): t = {{.Commitment}}, s = {{.Signature}}</li>{{end}}
</ul>
<p class="{{if .Valid}}success{{else}}error{{end}}">Valid: {{yesno .Valid}}</p>
{{end}}

{{define "sign"}}<h3>Partial signature from {{.NodeID}}</h3>
<p><strong>Identity:</strong> {{.Identity}}</p>
<p><strong>Commitment:</strong> {{.Commitment}}</p>
<p><strong>Aggregate commitment:</strong> {{.AggregateCommitment}}</p>
<p><strong>Challenge:</strong> {{.Challenge}}</p>
<p><strong>Partial signature:</strong> {{.PartialSignature}}</p>
{{end}}

{{define "verifyquery"}}<h3>Verified query</h3>
<p><strong>Signers:</strong> {{range $i, $s := .VerificationParameters.Signers}}{{if $i}}, {{end}}{{$s}}{{end}}</p>
<p><strong>Combined signature:</strong> {{.VerificationParameters.CombinedSignature}}</p>
<p><strong>Encrypted response:</strong> <code>{{.EncryptedResponse}}</code></p>
{{end}}

{{define "decrypt"}}<h3>Decrypted response ({{.Format}})</h3>
<pre>{{.Body}}</pre>
{{end}}

{{define "walkthrough"}}<h2>Harn signing walkthrough</h2>
{{range $i, $step := .Steps}}<h3>{{inc $i}}. {{$step.Title}}</h3>
<p>{{$step.Detail}}</p>
<ul>{{range $step.Values}}
<li><strong>{{.Label}}</strong> = {{.Value}}</li>{{end}}
</ul>
{{end}}<p class="{{if .Valid}}success{{else}}error{{end}}">Signature valid: {{yesno .Valid}}</p>
{{end}}

{{define "fault"}}<p>Node {{.Node}} faulty: {{yesno .Faulty}}</p>
{{end}}

{{define "error"}}<p class="error">{{.}}</p>
{{end}}
`

const textSource = `
{{define "submit"}}Status:    {{.RecordStatus}}
Sequence:  {{.Sequence}}
View:      {{.View}}

Pre-prepare from {{.PrePrepare.Sender}}
  record:    {{.PrePrepare.Record}}
  signature: {{.PrePrepare.Signature}}

Prepare messages ({{len .Prepares}}){{range .Prepares}}
  {{.Sender}}: {{.Signature}}{{end}}

Commit messages ({{len .Commits}}){{range .Commits}}
  {{.Sender}}: {{.Signature}}{{end}}

Final consensus: {{.PreparesCount}} prepares, {{.CommitsCount}} commits
Primary node:    {{yesno .IsPrimary}}
{{if .Committed}}{{banner}}{{else}}Waiting for commit{{end}}
{{end}}

{{define "status"}}sequence {{.Sequence}} view {{.View}}: {{.State}} ({{.Prepares}}/{{.RequiredPrepares}} prepares, {{.Commits}}/{{.RequiredCommits}} commits){{if .ViewMismatch}}, ordered in view {{.RecordView}}{{end}}
{{end}}

{{define "system"}}nodes {{.TotalNodes}}  threshold {{.ConsensusThreshold}}  max faulty {{.MaxFaulty}}
records {{.RecordsStored}}  global sequence {{.GlobalSequenceNumber}}  pending {{.Pending}}
{{range .Nodes}}  {{.Name}}  view={{.View}} seq={{.Seq}} primary={{yesno .Primary}} faulty={{yesno .Faulty}} records={{.Records}}
{{end}}{{end}}

{{define "viewchange"}}{{.Status}}: view {{.NewView}}, primary {{.Primary}} (was {{.OldPrimary}}), {{len .CheckpointMessages}} checkpoint messages
{{end}}

{{define "query"}}{{range .}}node {{.NodeQueried}}: {{.Count}} result(s){{if .ItemID}} for {{.ItemID}}{{end}}
{{range .Results}}  {{.NodeID}}:{{.ItemID}} quantity={{optional .Quantity}} price={{optional .Price}} status="{{.Status}}"
{{end}}{{end}}{{end}}

{{define "nodeinfo"}}PKG n = {{.PKG.N}}
PKG e = {{.PKG.E}}
{{range .Rows}}  {{.ID}}  identity={{.Identity}} random_val={{.RandomVal}}
      secret_key={{.SecretKey}}
{{end}}{{end}}

{{define "multisign"}}message: {{.Message}}
signers: {{range $i, $s := .Signers}}{{if $i}},{{end}}{{$s}}{{end}}
t = {{.T}}
h = {{.Challenge}}
s = {{.Signature}}
{{range .Partials}}  {{.Node}} (ID {{.Identity}}): t={{.Commitment}} s={{.Signature}}
{{end}}valid: {{yesno .Valid}}
{{end}}

{{define "sign"}}{{.NodeID}} (ID {{.Identity}})
  commitment:           {{.Commitment}}
  aggregate commitment: {{.AggregateCommitment}}
  challenge:            {{.Challenge}}
  partial signature:    {{.PartialSignature}}
{{end}}

{{define "verifyquery"}}signers: {{range $i, $s := .VerificationParameters.Signers}}{{if $i}},{{end}}{{$s}}{{end}}
combined signature: {{.VerificationParameters.CombinedSignature}}
encrypted response:
{{.EncryptedResponse}}
{{end}}

{{define "decrypt"}}decrypted ({{.Format}}):
{{.Body}}
{{end}}

{{define "walkthrough"}}{{range $i, $step := .Steps}}{{inc $i}}. {{$step.Title}}
   {{$step.Detail}}
{{range $step.Values}}   {{.Label}} = {{.Value}}
{{end}}
{{end}}signature valid: {{yesno .Valid}}
{{end}}

{{define "fault"}}node {{.Node}} faulty: {{yesno .Faulty}}
{{end}}

{{define "error"}}error: {{.}}
{{end}}
`
