/*
Package dialogue implements the Socratic dialogue orchestration pipeline.

Each user turn flows through an ordered set of stages:

 1. RouteStage decides whether the turn needs document retrieval.
 2. ExpandStage rewrites the message into a retrieval query (retrieval path only).
 3. ContextStage retrieves passages and formats them into a context block.
 4. QualityStage classifies the logical quality of the user's statement.
 5. SynthesisStage generates a follow-up question and then the final answer.

The Session aggregate composes the stages, owns the conversation history
and enforces the lifecycle: a greeting on construction, a bounded number
of exchanges, and a terminal wrap-up that produces a summary, improvement
advice and web-search-backed suggested readings.

History only grows when a turn fully succeeds, and always by exactly the
user and agent turns. Stages read a consistent pre-turn snapshot; a
session handles one turn at a time, while distinct sessions are fully
independent.
*/
package dialogue
